// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package magic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siderolabs/go-guestinspect/blkid/internal/magic"
)

func TestMatches(t *testing.T) {
	t.Parallel()

	m := magic.Magic{Offset: 3, Value: []byte("NTFS")}

	assert.Equal(t, 7, m.BlockSize())
	assert.True(t, m.Matches([]byte("\xeb\x52\x90NTFS    ")))
	assert.False(t, m.Matches([]byte("\xeb\x52\x90NTF")))
	assert.False(t, m.Matches([]byte("\xeb\x52\x90XFSB")))
	assert.False(t, m.Matches(nil))
}
