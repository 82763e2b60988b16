package pagination

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
)

var testKeys = NewSortKeys(Asc,
	SortKey{Field: "name", Column: "e.name", Kind: KindText},
	SortKey{Field: "hireDate", Column: "e.hire_date", Kind: KindDate, Nullable: true},
	SortKey{Field: "updatedAt", Aliases: []string{"at"}, Column: "c.updated_at", Kind: KindTimestamp},
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestNormalizeSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      *int
		want    int
		wantErr bool
	}{
		{name: "default", in: nil, want: DefaultSize},
		{name: "explicit", in: intPtr(5), want: 5},
		{name: "max", in: intPtr(MaxSize), want: MaxSize},
		{name: "clamped", in: intPtr(MaxSize + 1), want: MaxSize},
		{name: "zero", in: intPtr(0), wantErr: true},
		{name: "negative", in: intPtr(-3), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeSize(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPageSize)
				assert.Same(t, apperr.ErrValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	q, err := Normalize(Request{}, testKeys)
	require.NoError(t, err)
	assert.Equal(t, "name", q.Key.Field)
	assert.Equal(t, Asc, q.Direction)
	assert.Equal(t, DefaultSize, q.Size)
	assert.Nil(t, q.After)
	assert.Nil(t, q.AnchorID)
}

func TestNormalize_Alias(t *testing.T) {
	t.Parallel()

	q, err := Normalize(Request{SortField: "at", SortDirection: "DESC"}, testKeys)
	require.NoError(t, err)
	assert.Equal(t, "updatedAt", q.Key.Field)
	assert.Equal(t, Desc, q.Direction)
}

func TestNormalize_Rejects(t *testing.T) {
	t.Parallel()

	token, err := Encode(Cursor{Field: "name", Direction: Asc, Value: []byte(`"a"`), ID: 3})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{name: "unknown sort", req: Request{SortField: "salary"}, wantErr: ErrInvalidSort},
		{name: "bad direction", req: Request{SortDirection: "sideways"}, wantErr: ErrInvalidSortDirection},
		{name: "zero size", req: Request{Size: intPtr(0)}, wantErr: ErrInvalidPageSize},
		{name: "cursor other field", req: Request{SortField: "hireDate", Cursor: token}, wantErr: ErrInvalidCursor},
		{name: "cursor other direction", req: Request{SortDirection: "desc", Cursor: token}, wantErr: ErrInvalidCursor},
		{name: "cursor id mismatch", req: Request{Cursor: token, IDAfter: int64Ptr(4)}, wantErr: ErrInvalidCursor},
		{name: "garbage cursor", req: Request{Cursor: "zzz"}, wantErr: ErrInvalidCursor},
		{name: "non positive idAfter", req: Request{IDAfter: int64Ptr(0)}, wantErr: ErrInvalidIDAfter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Normalize(tt.req, testKeys)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.ErrValidation, apperr.KindOf(err))
		})
	}
}

func TestNormalize_CursorDecodesTypedValue(t *testing.T) {
	t.Parallel()

	token, err := Encode(Cursor{Field: "hireDate", Direction: Asc, Value: []byte(`"2024-04-01"`), ID: 9})
	require.NoError(t, err)

	q, err := Normalize(Request{SortField: "hireDate", Cursor: token, IDAfter: int64Ptr(9)}, testKeys)
	require.NoError(t, err)
	require.NotNil(t, q.After)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), q.After.Value)
	assert.Equal(t, int64(9), q.After.ID)
}

func TestNormalize_NullCursorOnNonNullableKey(t *testing.T) {
	t.Parallel()

	token, err := Encode(Cursor{Field: "name", Direction: Asc, ID: 9})
	require.NoError(t, err)

	_, err = Normalize(Request{Cursor: token}, testKeys)
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestQuery_ResolveAnchor(t *testing.T) {
	t.Parallel()

	q, err := Normalize(Request{IDAfter: int64Ptr(12)}, testKeys)
	require.NoError(t, err)

	err = q.ResolveAnchor(context.Background(), func(_ context.Context, key SortKey, id int64) (any, error) {
		assert.Equal(t, "name", key.Field)
		assert.Equal(t, int64(12), id)
		return "Suzuki", nil
	})
	require.NoError(t, err)
	require.NotNil(t, q.After)
	assert.Equal(t, Position{Value: "Suzuki", ID: 12}, *q.After)
	assert.Nil(t, q.AnchorID)

	missing, err := Normalize(Request{IDAfter: int64Ptr(99)}, testKeys)
	require.NoError(t, err)
	err = missing.ResolveAnchor(context.Background(), func(context.Context, SortKey, int64) (any, error) {
		return nil, ErrAnchorNotFound
	})
	require.ErrorIs(t, err, ErrInvalidIDAfter)
}

func TestQuery_OrderingWithNullsAndTies(t *testing.T) {
	t.Parallel()

	d := func(day int) any { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	rows := []Position{
		{Value: d(2), ID: 4},
		{Value: nil, ID: 2},
		{Value: d(1), ID: 5},
		{Value: d(2), ID: 1},
		{Value: nil, ID: 6},
	}

	asc := Query{Key: testKeys.byName["hireDate"], Direction: Asc}
	sorted := append([]Position(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return asc.Less(sorted[i], sorted[j]) })
	assert.Equal(t, []int64{5, 1, 4, 2, 6}, ids(sorted))

	desc := Query{Key: testKeys.byName["hireDate"], Direction: Desc}
	sort.Slice(sorted, func(i, j int) bool { return desc.Less(sorted[i], sorted[j]) })
	assert.Equal(t, []int64{6, 2, 4, 1, 5}, ids(sorted))

	desc.After = &Position{Value: nil, ID: 2}
	assert.False(t, desc.Follows(Position{Value: nil, ID: 6}))
	assert.True(t, desc.Follows(Position{Value: d(2), ID: 4}))
}

func ids(ps []Position) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
