// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package container

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyLimited(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0xA5}, copyChunk+1000)

	for _, test := range []struct { //nolint:govet
		name        string
		limit       uint64
		wantErr     error
		wantWritten int
	}{
		{
			name:        "no limit",
			limit:       0,
			wantWritten: len(data),
		},
		{
			name:        "limit equals size",
			limit:       uint64(len(data)),
			wantWritten: len(data),
		},
		{
			name:        "limit above size",
			limit:       uint64(len(data)) * 2,
			wantWritten: len(data),
		},
		{
			name:        "one byte over",
			limit:       uint64(len(data)) - 1,
			wantErr:     ErrTooLarge,
			wantWritten: len(data) - 1,
		},
		{
			name:        "small limit",
			limit:       10,
			wantErr:     ErrTooLarge,
			wantWritten: 10,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer

			err := copyLimited(t.Context(), &out, bytes.NewReader(data), test.limit)
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, test.wantWritten, out.Len())
		})
	}
}

func TestCopyLimitedReadError(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken stream")

	var out bytes.Buffer

	err := copyLimited(t.Context(), &out, iotest.ErrReader(errBroken), 100)
	require.ErrorIs(t, err, errBroken)
	assert.Zero(t, out.Len())
}
