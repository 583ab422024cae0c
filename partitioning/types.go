// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import (
	"fmt"

	"github.com/google/uuid"
)

// Well-known GPT partition types.
var (
	GPTTypeEFISystem     = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	GPTTypeBIOSBoot      = uuid.MustParse("21686148-6449-6E6F-744E-656564454649")
	GPTTypeLinuxData     = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	GPTTypeLinuxSwap     = uuid.MustParse("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F")
	GPTTypeLinuxLVM      = uuid.MustParse("E6D6D379-F507-44C2-A23C-238F2A3DF928")
	GPTTypeLinuxRootX86  = uuid.MustParse("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709")
	GPTTypeMicrosoftData = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	GPTTypeMicrosoftMSR  = uuid.MustParse("E3C9E316-0B5C-4DB8-817D-F92DF00215AE")
	GPTTypeWindowsRecov  = uuid.MustParse("DE94BBA4-06D1-4D40-A16A-BFD50179D6AC")
)

var gptTypeNames = map[uuid.UUID]string{
	GPTTypeEFISystem:     "EFI System",
	GPTTypeBIOSBoot:      "BIOS boot",
	GPTTypeLinuxData:     "Linux filesystem",
	GPTTypeLinuxSwap:     "Linux swap",
	GPTTypeLinuxLVM:      "Linux LVM",
	GPTTypeLinuxRootX86:  "Linux root (x86-64)",
	GPTTypeMicrosoftData: "Microsoft basic data",
	GPTTypeMicrosoftMSR:  "Microsoft reserved",
	GPTTypeWindowsRecov:  "Windows recovery environment",
}

// GPTTypeName returns the name of a GPT partition type, or the GUID itself.
func GPTTypeName(typ uuid.UUID) string {
	if name, ok := gptTypeNames[typ]; ok {
		return name
	}

	return typ.String()
}

var mbrTypeNames = map[byte]string{
	0x01:                 "FAT12",
	0x04:                 "FAT16 <32M",
	0x06:                 "FAT16",
	0x07:                 "HPFS/NTFS/exFAT",
	0x0B:                 "W95 FAT32",
	0x0C:                 "W95 FAT32 (LBA)",
	0x0E:                 "W95 FAT16 (LBA)",
	0x27:                 "Hidden NTFS WinRE",
	0x82:                 "Linux swap",
	0x83:                 "Linux",
	0x8E:                 "Linux LVM",
	0xA5:                 "FreeBSD",
	0xA6:                 "OpenBSD",
	0xA9:                 "NetBSD",
	0xEF:                 "EFI (FAT-12/16/32)",
	0xFD:                 "Linux raid autodetect",
	MBRTypeExtendedCHS:   "Extended",
	MBRTypeExtendedLBA:   "W95 Ext'd (LBA)",
	MBRTypeExtendedLinux: "Linux extended",
	MBRTypeProtective:    "GPT",
}

// MBRTypeName returns the name of an MBR partition type code.
func MBRTypeName(typ byte) string {
	if name, ok := mbrTypeNames[typ]; ok {
		return name
	}

	return fmt.Sprintf("0x%02x", typ)
}
