package game

import (
	"fmt"
	"strings"
)

// Merge-object identifiers are partitioned by origin so a reconciliation
// step can never confuse one namespace with another:
//
//	f_<n>           drop-confirmed, issued by the relay, monotonic per room
//	m_<n>           merge result, issued by the host, monotonic per room
//	_p_<unixMilli>  locally predicted, ephemeral, never authoritative
const (
	dropUIDPrefix      = "f_"
	mergeUIDPrefix     = "m_"
	predictedUIDPrefix = "_p_"
)

// DropUID formats the relay-issued identifier for the nth drop.
func DropUID(n uint64) string {
	return fmt.Sprintf("%s%d", dropUIDPrefix, n)
}

// MergeUID formats the host-issued identifier for the nth merge result.
func MergeUID(n uint64) string {
	return fmt.Sprintf("%s%d", mergeUIDPrefix, n)
}

// PredictedUID formats the ephemeral identifier for a locally predicted
// drop created at the given client timestamp.
func PredictedUID(unixMilli int64) string {
	return fmt.Sprintf("%s%d", predictedUIDPrefix, unixMilli)
}

// IsPredicted reports whether uid belongs to the ephemeral prediction
// namespace. Predicted objects are exempt from snapshot reconciliation.
func IsPredicted(uid string) bool {
	return strings.HasPrefix(uid, predictedUIDPrefix)
}
