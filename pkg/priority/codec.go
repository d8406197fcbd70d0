package priority

import (
	"fmt"

	"github.com/keyki/hoya/pkg/types"
)

// uniqueBit marks a request as wanting a container on a node not already
// running an instance of the role. It is carried in the priority value so
// a driver that only forwards priorities unmodified still preserves the
// hint; Extract masks it away.
const uniqueBit = int32(1) << 30

// MaxRoleID is the largest role id that fits in the priority range once
// uniqueBit is reserved.
const MaxRoleID = int(uniqueBit - 1)

// Encode packs a role id into a container-request priority. unique marks
// the request as preferring a node not already running the role.
func Encode(roleID int, unique bool) int32 {
	p := int32(roleID)
	if unique {
		p |= uniqueBit
	}
	return p
}

// Extract recovers the role id from a priority value produced by Encode.
func Extract(p int32) int {
	return int(p &^ uniqueBit)
}

// ExtractFromContainer recovers the role id carried by an allocated
// container's priority field.
func ExtractFromContainer(c types.ContainerHandle) int {
	return Extract(c.Priority)
}

// Validate checks that a role id fits in the priority range, returning a
// configuration error description if not. It does not allocate an
// apperrors value itself to keep this leaf package dependency-free; the
// caller (pkg/appstate, at build time) wraps the message.
func Validate(roleID int) error {
	if roleID < 1 {
		return fmt.Errorf("role id %d must be >= 1", roleID)
	}
	if roleID > MaxRoleID {
		return fmt.Errorf("role id %d exceeds maximum priority %d", roleID, MaxRoleID)
	}
	return nil
}
