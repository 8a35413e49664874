package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelFromTypeReplacesNamespaceSeparator(t *testing.T) {
	assert.Equal(t, "aws_ec2_instance", labelFromType("aws::ec2::instance"))
}

func TestClassifyGraphQLErrorsMapsKnownTypes(t *testing.T) {
	cases := []struct {
		errType string
		wantErr bool
	}{
		{"PayloadTooLargeError", true},
		{"ResolverCodeSizeError", true},
		{"ConnectionClosedPrematurelyError", true},
		{"SomethingElse", true},
	}
	for _, c := range cases {
		err := classifyGraphQLErrors([]graphqlError{{Message: "boom", Type: c.errType}})
		assert.Equal(t, c.wantErr, err != nil)
	}
	assert.Nil(t, classifyGraphQLErrors(nil))
}
