// Package search maintains a full-text index of message bodies, scoped
// per channel. BadgerDB stays the source of truth; hits come back as
// message IDs that callers resolve against the store.
package search

import (
	"context"
	"log/slog"

	"chat-sync/domain"

	"github.com/blugelabs/bluge"
)

const pageSize = 20

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Open opens (or creates) the on-disk index at path.
func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

// OpenInMemory backs the index with memory only, for tests.
func OpenInMemory(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// IndexMessage upserts one message. Edits reuse the same document ID, so
// the index always reflects the latest body.
func (i *Index) IndexMessage(m domain.Message) error {
	doc := bluge.NewDocument(m.ID).
		AddField(bluge.NewTextField("body", m.Body)).
		AddField(bluge.NewKeywordField("channel_id", m.ChannelID)).
		AddField(bluge.NewKeywordField("user_id", m.UserID))
	if m.Lang != "" {
		doc.AddField(bluge.NewKeywordField("lang", m.Lang))
	}
	return i.writer.Update(doc.ID(), doc)
}

func (i *Index) DeindexMessage(id string) error {
	doc := bluge.NewDocument(id)
	return i.writer.Delete(doc.ID())
}

// SearchPaginated runs a match query on message bodies restricted to one
// channel and returns the IDs of one result page plus the total hit count.
func (i *Index) SearchPaginated(ctx context.Context, query, channelID string, page int) ([]string, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("body")).
		AddMust(bluge.NewTermQuery(channelID).SetField("channel_id"))
	req := bluge.NewTopNSearch(pageSize, q).
		SetFrom(page * pageSize).
		WithStandardAggregations()

	dmi, err := reader.Search(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	var ids []string
	match, err := dmi.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	total := dmi.Aggregations().Count()
	i.log.Debug("search executed",
		slog.String("channel_id", channelID),
		slog.Uint64("total", total),
	)
	return ids, total, nil
}
