package guestfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyApplianceConnectionRefused(t *testing.T) {
	err := classifyAppliance([]string{
		"qemu-system-x86_64: -drive id=nbd0: Failed to connect to '1.2.3.4:10809': Connection refused",
	})
	assert.Equal(t, ErrKindConnectionRefused, err.Kind)
}

func TestClassifyApplianceExportNotFound(t *testing.T) {
	err := classifyAppliance([]string{
		"nbd: server reported: export 'missing' not present",
	})
	assert.Equal(t, ErrKindExportNotFound, err.Kind)
}

func TestClassifyApplianceFallsBackToGeneric(t *testing.T) {
	err := classifyAppliance([]string{"some unrelated appliance boot warning"})
	assert.Equal(t, ErrKindGeneric, err.Kind)
}

func TestClassifyDriveErrorNotFound(t *testing.T) {
	err := classifyDriveError("guestfs_add_drive_opts: /missing.img: No such file or directory")
	assert.Equal(t, ErrKindDiskNotFound, err.Kind)
}

func TestClassifyPathErrorNotFound(t *testing.T) {
	err := classifyPathError("guestfs_stat: /missing/path: No such file or directory")
	assert.Equal(t, ErrKindFileNotFound, err.Kind)
}

func TestClassifyLastErrorEmptyIsUnknown(t *testing.T) {
	err := classifyDriveError("")
	assert.Equal(t, ErrKindUnknown, err.Kind)
}
