package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/f1gpt/internal/log"
)

// fakeRows implements pgx.Rows over an in-memory result set.
type fakeRows struct {
	rows    [][]any
	idx     int
	scanErr error
	rowsErr error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.rowsErr }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = row[i].(string)
		case *[]byte:
			*v = row[i].([]byte)
		case *float64:
			*v = row[i].(float64)
		case *int64:
			*v = row[i].(int64)
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}

// fakeQuerier records executed SQL and returns scripted results.
type fakeQuerier struct {
	execErrs  []error // popped per Exec call; nil entry = success
	queryErr  error
	queryRows *fakeRows

	execSQL  []string
	querySQL []string
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.execSQL = append(q.execSQL, sql)
	if len(q.execErrs) > 0 {
		err := q.execErrs[0]
		q.execErrs = q.execErrs[1:]
		return pgconn.CommandTag{}, err
	}
	return pgconn.CommandTag{}, nil
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.querySQL = append(q.querySQL, sql)
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	if q.queryRows != nil {
		return q.queryRows, nil
	}
	return &fakeRows{}, nil
}

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, Message: "scripted failure"}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"undefined table", pgError(pgerrcode.UndefinedTable), KindNotFound},
		{"connection failure", pgError(pgerrcode.ConnectionFailure), KindUnavailable},
		{"cannot connect now", pgError(pgerrcode.CannotConnectNow), KindUnavailable},
		{"too many connections", pgError(pgerrcode.TooManyConnections), KindUnavailable},
		{"permission denied", pgError(pgerrcode.InsufficientPrivilege), KindOther},
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"untyped not found", errors.New("collection NOT FOUND"), KindNotFound},
		{"untyped does not exist", errors.New(`relation "vs_x" does not exist`), KindNotFound},
		{"untyped refused", errors.New("dial tcp: connection refused"), KindUnavailable},
		{"untyped other", errors.New("boom"), KindOther},
		{"wrapped classified error", wrap("search", pgError(pgerrcode.UndefinedTable)), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	notFound := wrap("fetch collection x", pgError(pgerrcode.UndefinedTable))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsUnavailable(notFound))

	unavailable := wrap("search", context.DeadlineExceeded)
	assert.True(t, IsUnavailable(unavailable))

	// Classified errors unwrap to their cause.
	assert.ErrorIs(t, unavailable, context.DeadlineExceeded)
}

func TestTableFor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "f1_articles", "vs_f1_articles", false},
		{"single letter", "a", "vs_a", false},
		{"empty", "", "", true},
		{"uppercase", "Articles", "", true},
		{"leading digit", "1articles", "", true},
		{"injection attempt", "x; DROP TABLE users", "", true},
		{"too long", strings.Repeat("a", 49), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tableFor(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCollectionName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetOrCreateCollection_Existing(t *testing.T) {
	q := &fakeQuerier{}
	s := New(q, log.NewNop())

	coll, err := s.GetOrCreateCollection(context.Background(), "f1_articles", 1536)
	require.NoError(t, err)
	assert.Equal(t, "f1_articles", coll.Name)
	assert.Equal(t, 1536, coll.Dimension)
	assert.Empty(t, q.execSQL, "no DDL expected when collection exists")
}

func TestGetOrCreateCollection_CreatesWhenMissing(t *testing.T) {
	q := &fakeQuerier{queryErr: pgError(pgerrcode.UndefinedTable)}
	s := New(q, log.NewNop())

	coll, err := s.GetOrCreateCollection(context.Background(), "f1_articles", 1536)
	require.NoError(t, err)
	require.NotNil(t, coll)

	require.Len(t, q.execSQL, 2, "expected CREATE TABLE and CREATE INDEX")
	assert.Contains(t, q.execSQL[0], "CREATE TABLE vs_f1_articles")
	assert.Contains(t, q.execSQL[0], "VECTOR(1536)")
	assert.Contains(t, q.execSQL[1], "vector_cosine_ops")
}

func TestGetOrCreateCollection_DuplicateCreateIsSuccess(t *testing.T) {
	// Concurrent first requests may both attempt creation; the loser's
	// duplicate_table error means the collection exists.
	q := &fakeQuerier{
		queryErr: pgError(pgerrcode.UndefinedTable),
		execErrs: []error{pgError(pgerrcode.DuplicateTable)},
	}
	s := New(q, log.NewNop())

	coll, err := s.GetOrCreateCollection(context.Background(), "f1_articles", 1536)
	require.NoError(t, err)
	assert.NotNil(t, coll)
}

func TestGetOrCreateCollection_OtherErrorPropagates(t *testing.T) {
	q := &fakeQuerier{queryErr: pgError(pgerrcode.ConnectionFailure)}
	s := New(q, log.NewNop())

	_, err := s.GetOrCreateCollection(context.Background(), "f1_articles", 1536)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Empty(t, q.execSQL, "creation must not be attempted on non-not-found errors")
}

func TestGetOrCreateCollection_InvalidInput(t *testing.T) {
	s := New(&fakeQuerier{}, log.NewNop())

	_, err := s.GetOrCreateCollection(context.Background(), "Bad Name", 1536)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)

	_, err = s.GetOrCreateCollection(context.Background(), "ok", 0)
	assert.Error(t, err)
}

func TestSearch_RankedResults(t *testing.T) {
	q := &fakeQuerier{queryRows: &fakeRows{rows: [][]any{
		{"Next GP: Monaco, 25 May 2025", []byte(`{"source":"calendar"}`), 0.93},
		{"Verstappen leads the standings", []byte(`{}`), 0.81},
	}}}
	s := New(q, log.NewNop())
	coll := &Collection{Name: "f1_articles", Dimension: 3, table: "vs_f1_articles"}

	docs, err := s.Search(context.Background(), coll, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Next GP: Monaco, 25 May 2025", docs[0].Text)
	assert.Equal(t, "calendar", docs[0].Metadata["source"])
	assert.InDelta(t, 0.93, docs[0].Similarity, 1e-9)
	assert.Equal(t, "Verstappen leads the standings", docs[1].Text)

	require.Len(t, q.querySQL, 1)
	assert.Contains(t, q.querySQL[0], "ORDER BY embedding <=>")
	assert.Contains(t, q.querySQL[0], "LIMIT $2")
}

func TestSearch_BadMetadataDegradesToEmpty(t *testing.T) {
	q := &fakeQuerier{queryRows: &fakeRows{rows: [][]any{
		{"some text", []byte(`not json`), 0.5},
	}}}
	s := New(q, log.NewNop())
	coll := &Collection{Name: "c", Dimension: 2, table: "vs_c"}

	docs, err := s.Search(context.Background(), coll, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotNil(t, docs[0].Metadata)
	assert.Empty(t, docs[0].Metadata)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s := New(&fakeQuerier{}, log.NewNop())
	coll := &Collection{Name: "c", Dimension: 3, table: "vs_c"}

	_, err := s.Search(context.Background(), coll, []float32{1, 2}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestSearch_QueryErrorIsClassified(t *testing.T) {
	q := &fakeQuerier{queryErr: pgError(pgerrcode.ConnectionFailure)}
	s := New(q, log.NewNop())
	coll := &Collection{Name: "c", Dimension: 1, table: "vs_c"}

	_, err := s.Search(context.Background(), coll, []float32{1}, 5)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestUpsert_DimensionChecked(t *testing.T) {
	s := New(&fakeQuerier{}, log.NewNop())
	coll := &Collection{Name: "c", Dimension: 3, table: "vs_c"}

	err := s.Upsert(context.Background(), coll, []Record{{Vector: []float32{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestUpsert_WritesAllRecords(t *testing.T) {
	q := &fakeQuerier{}
	s := New(q, log.NewNop())
	coll := &Collection{Name: "c", Dimension: 2, table: "vs_c"}

	records := []Record{
		{Text: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"url": "https://example.com"}},
		{Text: "b", Vector: []float32{0, 1}},
	}
	require.NoError(t, s.Upsert(context.Background(), coll, records))
	require.Len(t, q.execSQL, 2)
	assert.Contains(t, q.execSQL[0], "ON CONFLICT (id) DO UPDATE")
}

func TestVectorEncoding(t *testing.T) {
	// Sanity check that query vectors round-trip through pgvector's
	// wire type unchanged.
	v := pgvector.NewVector([]float32{0.25, -1, 3})
	assert.Equal(t, []float32{0.25, -1, 3}, v.Slice())
}
