// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import (
	"errors"
	"fmt"

	"github.com/siderolabs/go-guestinspect/internal/gptstructs"
)

// Causes of a DetectError.
var (
	ErrShortBootSector  = errors.New("disk is too small to hold a boot sector")
	ErrGPTHeaderCRC     = gptstructs.ErrHeaderCRC
	ErrGPTEntriesCRC    = gptstructs.ErrEntriesCRC
	ErrGPTHeaderInvalid = gptstructs.ErrHeaderInvalid
	ErrGPTMissing       = errors.New("protective MBR without a GPT header")
	ErrEBRCycle         = errors.New("extended boot record chain loops")
	ErrEBRSignature     = errors.New("extended boot record has no boot signature")
	ErrTooManyLogical   = errors.New("too many logical partitions")
	ErrOutOfBounds      = errors.New("partition exceeds disk bounds")
	ErrOverlap          = errors.New("partitions overlap")
	ErrOverflow         = errors.New("partition offset overflows")
)

// DetectError is returned when the partition table is present but inconsistent.
type DetectError struct {
	// Check names the validation step which failed.
	Check string
	Err   error
}

func (e *DetectError) Error() string {
	return fmt.Sprintf("partition table %s check failed: %s", e.Check, e.Err)
}

func (e *DetectError) Unwrap() error {
	return e.Err
}

func detectError(check string, err error) *DetectError {
	return &DetectError{Check: check, Err: err}
}

// IsDetectError returns true if err is (or wraps) a *DetectError.
func IsDetectError(err error) bool {
	var detectErr *DetectError

	return errors.As(err, &detectErr)
}
