package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/protobridge/linker"
)

func TestEmitStatic(t *testing.T) {
	src, err := EmitStatic(`C:\protos\greeter.proto`, &linker.Artifacts{
		MessagesPath: `C:\cache\greeter-0123\greeter_pb.js`,
		ServicesPath: `C:\cache\greeter-0123\greeter_grpc_pb.js`,
	})
	require.NoError(t, err)

	assert.Equal(t, `// Code generated by protobridge from C:/protos/greeter.proto. DO NOT EDIT.
'use strict';

exports.services = require('C:/cache/greeter-0123/greeter_grpc_pb.js');
exports.messages = require('C:/cache/greeter-0123/greeter_pb.js');
`, src)
}

func TestEmitDynamic(t *testing.T) {
	src, err := EmitDynamic("/protos/greeter.proto", []byte(`{"file":[]}`), []byte(`{"enumsAsStrings":true}`))
	require.NoError(t, err)

	assert.Contains(t, src, "var descriptor = {\"file\":[]};\n")
	assert.Contains(t, src, "var config = {\"enumsAsStrings\":true};\n")
	assert.Contains(t, src, "if (config.enumsAsStrings) options.enums = String;")
	assert.Contains(t, src, "module.exports = grpc.loadPackageDefinition(")
}

func TestCommentSafe(t *testing.T) {
	assert.Equal(t, "/a b/c.proto", commentSafe("/a\nb\\c.proto"))
}
