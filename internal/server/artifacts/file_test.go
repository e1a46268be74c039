package artifacts

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGet(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	ref, err := s.Put(ctx, "qr/2024/03/07/a.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "qr/2024/03/07/a.png", ref)

	b, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), b)

	_, err = s.Get(ctx, "qr/missing.png")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFileStore_RejectsEscapingRefs(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := s.Put(ctx, "../outside.png", []byte("x"))
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = s.Get(ctx, "/etc/passwd")
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}
