// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ioutil_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-guestinspect/internal/ioutil"
)

func TestReadFullAt(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte("0123456789"))

	buf := make([]byte, 4)
	require.NoError(t, ioutil.ReadFullAt(r, buf, 6))
	assert.Equal(t, []byte("6789"), buf)

	err := ioutil.ReadFullAt(r, buf, 8)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRange(t *testing.T) {
	t.Parallel()

	rng := ioutil.NewRange(bytes.NewReader([]byte("0123456789")), 2, 5, 512)

	assert.EqualValues(t, 5, rng.GetSize())
	assert.EqualValues(t, 512, rng.GetSectorSize())

	buf := make([]byte, 3)
	require.NoError(t, ioutil.ReadFullAt(rng, buf, 0))
	assert.Equal(t, []byte("234"), buf)

	require.ErrorIs(t, ioutil.ReadFullAt(rng, buf, 3), io.ErrUnexpectedEOF)

	_, err := rng.ReadAt(buf, 6)
	require.ErrorIs(t, err, ioutil.ErrOutOfBounds)
}

func TestMulOffset(t *testing.T) {
	t.Parallel()

	v, err := ioutil.MulOffset(2048, 512)
	require.NoError(t, err)
	assert.EqualValues(t, 1048576, v)

	_, err = ioutil.MulOffset(math.MaxUint64/2, 512)
	require.Error(t, err)
}
