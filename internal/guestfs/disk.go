package guestfs

import "fmt"

// Disk is an attached, launched libguestfs appliance backed by one NBD
// export, before any partition has been mounted.
type Disk struct {
	handle *Handle
	url    string
}

// AttachNBD creates a fresh appliance, attaches url as a read-only SCSI
// drive, and launches it. The sequence mirrors the reference
// attach_nbd_disk: a /dev/null stub drive is required before launch
// because libguestfs refuses to boot an appliance with no drives at all.
func AttachNBD(url string) (*Disk, error) {
	handle, err := NewHandle()
	if err != nil {
		return nil, err
	}

	if err := handle.SetAppend("SYSTEMD_COLORS=0"); err != nil {
		handle.Close()
		return nil, err
	}

	if err := handle.AddReadOnlyDrive("/dev/null"); err != nil {
		handle.Close()
		return nil, err
	}

	if err := handle.AddQemuOption("-device", "scsi-hd,drive=nbd0"); err != nil {
		handle.Close()
		return nil, err
	}
	driveOpt := fmt.Sprintf("id=nbd0,file=%s,format=raw,if=none,readonly=on", url)
	if err := handle.AddQemuOption("-drive", driveOpt); err != nil {
		handle.Close()
		return nil, err
	}

	if err := handle.Launch(); err != nil {
		applianceErr := classifyAppliance(handle.DrainApplianceStderr())
		handle.Close()
		return nil, applianceErr
	}
	handle.DrainApplianceStderr()

	return &Disk{handle: handle, url: url}, nil
}

// Close releases the underlying appliance handle.
func (d *Disk) Close() {
	d.handle.Close()
}

func (d *Disk) String() string {
	return fmt.Sprintf("<disk %s>", d.url)
}

// ListPartitions enumerates the attached drive's partitions in device
// order (partition 1 is index 0), so 1-based MountSpec.Partition values
// from *.nbd config files map directly onto this slice.
func (d *Disk) ListPartitions() ([]*Partition, error) {
	devices, err := d.handle.ListPartitions()
	if err != nil {
		return nil, err
	}

	partitions := make([]*Partition, len(devices))
	for i, device := range devices {
		partitions[i] = &Partition{handle: d.handle, device: device}
	}
	return partitions, nil
}

// Stat returns the size in bytes of absolutePath within whatever has been
// mounted onto the guest filesystem namespace so far.
func (d *Disk) Stat(absolutePath string) (int64, error) {
	return d.handle.Stat(absolutePath)
}

// Pread reads up to len(buf) bytes from absolutePath at offset.
func (d *Disk) Pread(absolutePath string, buf []byte, offset int64) (int, error) {
	return d.handle.Pread(absolutePath, buf, offset)
}

// Partition is one partition of an attached Disk, addressable by its
// libguestfs device name (e.g. "/dev/sda1").
type Partition struct {
	handle *Handle
	device string
}

func (p *Partition) String() string {
	return fmt.Sprintf("<partition %s>", p.device)
}

// MountRO mounts the partition read-only at mountpoint within the guest
// filesystem namespace, where mountpoint is an absolute guest path like
// "/" or "/boot".
func (p *Partition) MountRO(mountpoint string) error {
	return p.handle.MountRO(p.device, mountpoint)
}
