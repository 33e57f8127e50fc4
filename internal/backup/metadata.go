package backup

import (
	"errors"
	"fmt"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// ErrIncompleteMetadata means a backup cannot be restored.
var ErrIncompleteMetadata = errors.New("backup metadata is incomplete")

// Metadata captures what a restore needs from the resource and its
// snapshots.
func Metadata(r model.Resource, set backend.SnapshotSet) model.BackupMetadata {
	systemSize, dataSize := set.SystemSnapshotSize, set.DataSnapshotSize
	return model.BackupMetadata{
		Name:               r.Name,
		LinkID:             r.LinkID,
		FlavorName:         r.FlavorName,
		Cores:              r.Cores,
		RAM:                r.RAM,
		ImageName:          r.ImageName,
		KeyName:            r.KeyName,
		KeyFingerprint:     r.KeyFingerprint,
		UserData:           r.UserData,
		MinRAM:             r.MinRAM,
		MinDisk:            r.MinDisk,
		Tags:               r.Tags,
		SystemVolumeID:     r.SystemVolumeID,
		SystemVolumeSize:   r.SystemVolumeSize,
		DataVolumeID:       r.DataVolumeID,
		DataVolumeSize:     r.DataVolumeSize,
		SystemSnapshotID:   set.SystemSnapshotID,
		DataSnapshotID:     set.DataSnapshotID,
		SystemSnapshotSize: &systemSize,
		DataSnapshotSize:   &dataSize,
	}
}

// Snapshots returns the snapshot set recorded in metadata.
func Snapshots(md model.BackupMetadata) backend.SnapshotSet {
	set := backend.SnapshotSet{SystemSnapshotID: md.SystemSnapshotID, DataSnapshotID: md.DataSnapshotID}
	if md.SystemSnapshotSize != nil {
		set.SystemSnapshotSize = *md.SystemSnapshotSize
	}
	if md.DataSnapshotSize != nil {
		set.DataSnapshotSize = *md.DataSnapshotSize
	}
	return set
}

// RestoreOverrides are caller-supplied changes to the restored resource.
type RestoreOverrides struct {
	Name   string        `json:"name,omitempty"`
	Flavor *model.Flavor `json:"flavor,omitempty"`
}

// RestoreInput builds the resource a restore provisions. The result is in
// PROVISIONING_SCHEDULED with no ID or backend ID.
func RestoreInput(md *model.BackupMetadata, o RestoreOverrides) (model.Resource, error) {
	if md == nil {
		return model.Resource{}, fmt.Errorf("%w: no metadata", ErrIncompleteMetadata)
	}
	if md.SystemSnapshotSize == nil || md.DataSnapshotSize == nil {
		return model.Resource{}, fmt.Errorf("%w: snapshot sizes missing", ErrIncompleteMetadata)
	}
	r := model.Resource{
		LinkID:           md.LinkID,
		Type:             model.ResourceVM,
		Name:             md.Name,
		State:            model.StateProvisioningScheduled,
		FlavorName:       md.FlavorName,
		Cores:            md.Cores,
		RAM:              md.RAM,
		ImageName:        md.ImageName,
		KeyName:          md.KeyName,
		KeyFingerprint:   md.KeyFingerprint,
		UserData:         md.UserData,
		MinRAM:           md.MinRAM,
		MinDisk:          md.MinDisk,
		Tags:             append([]string(nil), md.Tags...),
		SystemVolumeSize: *md.SystemSnapshotSize,
		DataVolumeSize:   *md.DataSnapshotSize,
	}
	if o.Name != "" {
		r.Name = o.Name
	}
	if o.Flavor != nil {
		r.FlavorName, r.Cores, r.RAM = o.Flavor.Name, o.Flavor.Cores, o.Flavor.RAM
	}
	return r, nil
}
