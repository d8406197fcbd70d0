package types

// RecordFactory abstracts the cluster-manager's own record types behind a
// tiny construction surface. A driver can supply one that builds the
// resource manager's native capability/request records. Nothing in this
// repository calls it: pkg/appstate builds its ResourceRequirement
// values directly.
type RecordFactory interface {
	NewResourceRequirement() ResourceRequirement
}

// DefaultRecordFactory produces zero-valued ResourceRequirement records.
type DefaultRecordFactory struct{}

// NewResourceRequirement returns a zero-valued capability ready for the
// engine to populate from the cluster spec.
func (DefaultRecordFactory) NewResourceRequirement() ResourceRequirement {
	return ResourceRequirement{}
}
