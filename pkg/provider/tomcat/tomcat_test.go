package tomcat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoles(t *testing.T) {
	p := Provider{}
	roles := p.Roles()
	assert.Len(t, roles, 1)
	assert.Equal(t, RoleServer, roles[0].Name)
}
