package pageset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		pages []int
		total int
		want  error
	}{
		{"single first page", []int{0}, 1, nil},
		{"subset", []int{0, 2}, 3, nil},
		{"unsorted is fine", []int{2, 0}, 3, nil},
		{"empty", nil, 3, ErrEmpty},
		{"negative", []int{-1}, 3, ErrOutOfRange},
		{"past end", []int{3}, 3, ErrOutOfRange},
		{"duplicate", []int{1, 1}, 3, ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.pages, tt.total)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize([]int{2, 0, 2}, 3)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, got)

	_, err = Normalize([]int{5}, 3)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = Normalize([]int{}, 3)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestAllAndClone(t *testing.T) {
	require.Equal(t, []int{0, 1, 2}, All(3))
	require.Nil(t, All(0))

	src := []int{1, 2}
	c := Clone(src)
	c[0] = 9
	require.Equal(t, []int{1, 2}, src)
	require.Nil(t, Clone(nil))
}
