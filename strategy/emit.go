package strategy

import (
	"strings"
	"text/template"

	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/linker"
)

var staticModule = template.Must(template.New("static").Parse(`// Code generated by protobridge from {{.Schema}}. DO NOT EDIT.
'use strict';

exports.services = require('{{.Services}}');
exports.messages = require('{{.Messages}}');
`))

// The option translation targets @grpc/proto-loader's option names
var dynamicModule = template.Must(template.New("dynamic").Parse(`// Code generated by protobridge from {{.Schema}}. DO NOT EDIT.
'use strict';

var grpc = require('@grpc/grpc-js');
var protoLoader = require('@grpc/proto-loader');

var descriptor = {{.Descriptor}};
var config = {{.Config}};

var options = {};
if (config.convertFieldsToCamelCase !== undefined) options.keepCase = !config.convertFieldsToCamelCase;
if (config.binaryAsBase64) options.bytes = String;
if (config.longsAsStrings) options.longs = String;
if (config.enumsAsStrings) options.enums = String;

module.exports = grpc.loadPackageDefinition(protoLoader.loadFileDescriptorSetFromObject(descriptor, options));
`))

// EmitStatic renders the glue module re-exporting a linked pair
func EmitStatic(schemaPath string, arts *linker.Artifacts) (string, error) {
	return render(staticModule, map[string]string{
		"Schema":   commentSafe(schemaPath),
		"Services": linker.PortablePath(arts.ServicesPath),
		"Messages": linker.PortablePath(arts.MessagesPath),
	})
}

// EmitDynamic renders the module that rebuilds the schema at load time.
// descriptorJSON and configJSON must be JSON texts.
func EmitDynamic(schemaPath string, descriptorJSON, configJSON []byte) (string, error) {
	return render(dynamicModule, map[string]string{
		"Schema":     commentSafe(schemaPath),
		"Descriptor": string(descriptorJSON),
		"Config":     string(configJSON),
	})
}

func render(t *template.Template, data interface{}) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s module", t.Name())
	}
	return sb.String(), nil
}

// commentSafe keeps a path from ending the header line comment
func commentSafe(path string) string {
	return strings.NewReplacer("\n", " ", "\r", " ", `\`, "/").Replace(path)
}
