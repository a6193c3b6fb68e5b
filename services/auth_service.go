package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	stderrors "errors"
	"fmt"
	"time"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Keys(me, other string) (KeyExchange, error)
	ListUsers() ([]domain.User, error)
}

type Token string

type AuthService struct {
	userRepository    repositories.IUserRepository
	authTokenDuration time.Duration
}

func NewAuthService(repo repositories.IUserRepository, authTokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, authTokenDuration: authTokenDuration}
}

// Login authenticates a known username or registers a never-seen one in the
// same flow, exactly like the original login form: first successful attempt
// for a fresh username creates the user, assigns its display keypair once,
// and both paths end with a session token.
func (s *AuthService) Login(username, password string) (Token, error) {
	valReq := auth.LoginRequest{Username: username, Password: password}
	if err := auth.ValidateLogin(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}

	user, err := s.userRepository.GetUser(username)
	switch {
	case err == nil:
		match, err := auth.ComparePassword(password, user.Credential)
		if err != nil || !match {
			return "", errors.ErrInvalidCredentials
		}
	case stderrors.Is(err, errors.ErrUserNotFound):
		if err := s.register(username, password); err != nil {
			return "", err
		}
	default:
		return "", err
	}

	token, err := auth.GenerateToken(username, s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) register(username, password string) error {
	// Hashing happens here so the repository never sees a plain password.
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	privateKey, publicKey := auth.NewKeyPair()
	_, err = s.userRepository.CreateUser(username, hashed, privateKey, publicKey)
	return err // Propagates ErrDuplicateUsername if the name was just taken
}

// KeyExchange is the display payload for the cosmetic key-exchange view.
// The requesting user sees their own private key; the other side only ever
// exposes its public key.
type KeyExchange struct {
	Prime           int64  `json:"p"`
	Base            int64  `json:"c"`
	Seed            int64  `json:"seed"`
	Me              string `json:"me"`
	MyPrivateKey    int64  `json:"my_private_key"`
	MyPublicKey     int64  `json:"my_public_key"`
	Other           string `json:"other"`
	OtherPublicKey  int64  `json:"other_public_key"`
}

func (s *AuthService) Keys(me, other string) (KeyExchange, error) {
	myUser, err := s.userRepository.GetUser(me)
	if err != nil {
		return KeyExchange{}, err
	}
	otherUser, err := s.userRepository.GetUser(other)
	if err != nil {
		return KeyExchange{}, err
	}
	return KeyExchange{
		Prime:          auth.DemoPrime,
		Base:           auth.DemoBase,
		Seed:           auth.DemoSeed,
		Me:             myUser.Username,
		MyPrivateKey:   myUser.PrivateKey,
		MyPublicKey:    myUser.PublicKey,
		Other:          otherUser.Username,
		OtherPublicKey: otherUser.PublicKey,
	}, nil
}

func (s *AuthService) ListUsers() ([]domain.User, error) {
	return s.userRepository.ListUsers()
}
