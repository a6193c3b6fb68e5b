// Package search maintains a full-text index over message bodies. It hangs
// off the router's fanout path as a permanent sink, so indexing follows the
// same best-effort rules as live delivery: a failed index write never blocks
// or fails the message itself.
package search

import (
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"
)

const (
	scopeGroup  = "group"
	scopeDirect = "direct"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Result is one search hit, rebuilt from stored fields only.
type Result struct {
	ID     uint64 `json:"id"`
	Sender string `json:"sender"`
	Body   string `json:"message"`
}

// Consume mirrors router events into the index. Errors are reported to the
// caller, which logs and moves on like for any other sink.
func (i *Index) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.NewMessage:
		return i.indexMessage(evt)
	case event.MessageDeleted:
		return i.writer.Delete(bluge.Identifier(formatID(evt.ID)))
	case event.GroupCleared:
		return i.dropGroupDocs(ctx)
	default:
		return nil
	}
}

func (i *Index) indexMessage(msg event.NewMessage) error {
	scope := scopeGroup
	if msg.Recipient != nil {
		scope = scopeDirect
	}
	doc := bluge.NewDocument(formatID(msg.ID)).
		AddField(bluge.NewTextField("body", msg.Message).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.Sender).StoreValue()).
		AddField(bluge.NewKeywordField("scope", scope))
	return i.writer.Update(doc.ID(), doc)
}

// dropGroupDocs removes every group-scoped document. The ids are discovered
// through the index itself since the store no longer has them.
func (i *Index) dropGroupDocs(ctx context.Context) error {
	reader, err := i.writer.Reader()
	if err != nil {
		return err
	}
	defer reader.Close()

	query := bluge.NewTermQuery(scopeGroup).SetField("scope")
	request := bluge.NewAllMatches(query)

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return err
	}

	var ids []string
	next, err := dmi.Next()
	for err == nil && next != nil {
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return err
		}
		next, err = dmi.Next()
	}
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := i.writer.Delete(bluge.Identifier(id)); err != nil {
			i.log.Warn("index delete failed", "id", id, "error", err)
		}
	}
	return nil
}

// Search runs a match query over message bodies and returns up to limit hits
// with the total match count.
func (i *Index) Search(ctx context.Context, q string, limit int) ([]Result, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	query := bluge.NewMatchQuery(q).SetField("body")
	request := bluge.NewTopNSearch(limit, query).WithStandardAggregations()

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var results []Result
	next, err := dmi.Next()
	for err == nil && next != nil {
		var r Result
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				r.ID, _ = strconv.ParseUint(string(value), 10, 64)
			case "sender":
				r.Sender = string(value)
			case "body":
				r.Body = string(value)
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		results = append(results, r)
		next, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	return results, dmi.Aggregations().Count(), nil
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
