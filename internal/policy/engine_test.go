package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/telemetry"
)

const excludeSandboxPolicy = `
package discovery

exclude if {
	input.accountId == "000000000000"
}

reason := "sandbox account excluded from discovery" if {
	input.accountId == "000000000000"
}
`

func TestEvaluateExcludesMatchingAccount(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(telemetry.NewLogger("policy-test", "error"))
	require.NoError(t, e.LoadPolicy(ctx, "sandbox", excludeSandboxPolicy))

	decision, err := e.Evaluate(ctx, resource.Resource{AccountID: "000000000000", Type: "aws::ec2::instance"})
	require.NoError(t, err)
	assert.False(t, decision.Include)

	decision, err = e.Evaluate(ctx, resource.Resource{AccountID: "111111111111", Type: "aws::ec2::instance"})
	require.NoError(t, err)
	assert.True(t, decision.Include)
}
