package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/dealcore/internal/cache"
	"github.com/ppiankov/dealcore/internal/model"
)

func TestStore_SaveReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemoryStore(time.Hour, time.Minute), time.Hour)

	require.NoError(t, s.Save(ctx, &model.ResultSet{SessionID: "s1", Query: "first",
		Offers: []model.Offer{{SequenceNumber: 1, Title: "A"}}}))
	require.NoError(t, s.Save(ctx, &model.ResultSet{SessionID: "s1", Query: "second",
		Offers: []model.Offer{{SequenceNumber: 1, Title: "B"}, {SequenceNumber: 2, Title: "C"}}}))

	rs, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", rs.Query)
	assert.Len(t, rs.Offers, 2)
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemoryStore(time.Hour, time.Minute), time.Hour)

	require.NoError(t, s.Save(ctx, &model.ResultSet{SessionID: "a", Query: "qa"}))
	require.NoError(t, s.Save(ctx, &model.ResultSet{SessionID: "b", Query: "qb"}))

	rs, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "qa", rs.Query)
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(cache.NewMemoryStore(time.Hour, time.Minute), 0)
	_, err := s.Load(context.Background(), "nobody")
	assert.True(t, errors.Is(err, model.ErrNoResultSet))
}

func TestStore_SaveRequiresSessionID(t *testing.T) {
	s := NewStore(cache.NewMemoryStore(time.Hour, time.Minute), 0)
	assert.Error(t, s.Save(context.Background(), &model.ResultSet{}))
}
