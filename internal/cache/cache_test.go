package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-insight-pipeline/internal/model"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) LoadCacheRecord(ctx context.Context, key string) (*model.CacheRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CacheRecord), args.Error(1)
}

func (m *mockBackend) StoreCacheRecord(ctx context.Context, rec model.CacheRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func TestKey_Stable(t *testing.T) {
	s := New()
	a := s.Key([]byte("a,b\n1,2"), "standard")
	b := s.Key([]byte("a,b\n1,2"), "standard")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestKey_ChangesWithInputs(t *testing.T) {
	s := New()
	base := s.Key([]byte("a,b\n1,2"), "standard")

	assert.NotEqual(t, base, s.Key([]byte("a,b\n1,3"), "standard"))
	assert.NotEqual(t, base, s.Key([]byte("a,b\n1,2"), "deep"))
	assert.NotEqual(t, base, New(WithVersion("0.0.1")).Key([]byte("a,b\n1,2"), "standard"))
}

func TestKey_NoBoundaryCollision(t *testing.T) {
	s := New()
	assert.NotEqual(t, s.Key([]byte("ab"), "c"), s.Key([]byte("a"), "bc"))
}

func TestGetSet_InMemory(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	s.Set(ctx, "k", model.CacheRecord{Summary: &model.DataSummary{RowCount: 3}})
	rec, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "k", rec.Key)
	assert.Equal(t, 3, rec.Summary.RowCount)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestGet_BackendPromotes(t *testing.T) {
	b := new(mockBackend)
	stored := &model.CacheRecord{Key: "k", Summary: &model.DataSummary{RowCount: 9}}
	b.On("LoadCacheRecord", mock.Anything, "k").Return(stored, nil).Once()

	s := New(WithBackend(b))
	ctx := context.Background()

	rec, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 9, rec.Summary.RowCount)

	// Second read is served from memory.
	_, ok = s.Get(ctx, "k")
	assert.True(t, ok)
	b.AssertExpectations(t)
	assert.Equal(t, 1, s.Len())
}

func TestBackendFailures_AreIgnored(t *testing.T) {
	b := new(mockBackend)
	b.On("LoadCacheRecord", mock.Anything, "k").Return(nil, errors.New("disk gone"))
	b.On("StoreCacheRecord", mock.Anything, mock.Anything).Return(errors.New("disk gone"))

	s := New(WithBackend(b))
	ctx := context.Background()

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	s.Set(ctx, "k", model.CacheRecord{})
	_, ok = s.Get(ctx, "k")
	assert.True(t, ok)
}
