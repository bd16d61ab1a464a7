package testing

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// GreeterProto is a minimal valid schema with one service and two messages
const GreeterProto = `syntax = "proto3";

package helloworld;

service Greeter {
  rpc SayHello (HelloRequest) returns (HelloReply) {}
}

message HelloRequest {
  string name = 1;
  int64 visits = 2;
  bytes avatar = 3;
  Mood mood = 4;
}

message HelloReply {
  string message = 1;
}

enum Mood {
  MOOD_UNSPECIFIED = 0;
  MOOD_HAPPY = 1;
}
`

// BrokenProto is missing the closing brace of its service block
const BrokenProto = `syntax = "proto3";

package helloworld;

service Greeter {
  rpc SayHello (HelloRequest) returns (HelloReply) {}

message HelloRequest {
  string name = 1;
}
`

// WriteSchema writes a schema file into dir and returns its absolute path
func WriteSchema(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create schema dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write schema: %v", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("Failed to resolve schema path: %v", err)
	}
	return abs
}

// CompilerMode selects how a fake compiler behaves
type CompilerMode string

const (
	// CompilerOK emits both artifacts
	CompilerOK CompilerMode = "ok"
	// CompilerWarn emits both artifacts and a warning on stderr
	CompilerWarn CompilerMode = "warn"
	// CompilerNoServices exits 0 without emitting the services file
	CompilerNoServices CompilerMode = "no-services"
	// CompilerNoReference emits a services file that never requires the messages file
	CompilerNoReference CompilerMode = "no-reference"
	// CompilerFail exits 1 with an error on stderr
	CompilerFail CompilerMode = "fail"
)

// fakeCompilerScript honours the protoc argument contract. Schemas with
// unbalanced braces are rejected the way protoc rejects syntax errors.
const fakeCompilerScript = `#!/bin/sh
MODE=__MODE__
if [ "$1" = "--version" ]; then
  echo "libprotoc __VERSION__"
  exit 0
fi
if [ -n "$FAKE_PROTOC_LOG" ]; then
  printf '%s\n' "$@" > "$FAKE_PROTOC_LOG"
fi
out=""
schema=""
for arg in "$@"; do
  case "$arg" in
    --grpc_out=*) out="${arg#--grpc_out=}" ;;
    --proto_path=*|--js_out=*|--plugin=*) ;;
    *) schema="$arg" ;;
  esac
done
name=$(basename "$schema")
if [ "$MODE" = "fail" ]; then
  echo "$name: simulated compiler failure" >&2
  exit 1
fi
open=$(tr -cd '{' < "$schema" | wc -c)
close=$(tr -cd '}' < "$schema" | wc -c)
if [ "$open" -ne "$close" ]; then
  echo "$name:12:1: Expected \"}\"." >&2
  exit 1
fi
base="${name%.proto}"
printf "// GENERATED CODE -- messages for %s\nexports.schema = '%s';\n" "$name" "$name" > "$out/${base}_pb.js"
if [ "$MODE" = "no-services" ]; then
  exit 0
fi
{
  echo "// GENERATED CODE -- services for $name"
  echo "'use strict';"
  echo "var grpc = require('grpc');"
  if [ "$MODE" != "no-reference" ]; then
    echo "var ${base}_pb = require('./${base}_pb.js');"
  fi
  for svc in $(sed -n 's/^[[:space:]]*service[[:space:]][[:space:]]*\([A-Za-z0-9_]*\).*/\1/p' "$schema"); do
    echo "var ${svc}Service = exports.${svc}Service = {"
    for m in $(sed -n 's/^[[:space:]]*rpc[[:space:]][[:space:]]*\([A-Za-z0-9_]*\).*/\1/p' "$schema"); do
      lower="$(printf '%s' "$m" | cut -c1 | tr 'A-Z' 'a-z')$(printf '%s' "$m" | cut -c2-)"
      echo "  ${lower}: { path: '/${svc}/${m}', originalName: '${lower}' },"
    done
    echo "};"
    echo "exports.${svc}Client = grpc.makeGenericClientConstructor(${svc}Service);"
  done
} > "$out/${base}_grpc_pb.js"
if [ "$MODE" = "warn" ]; then
  echo "$name: warning: Import google/protobuf/empty.proto is unused." >&2
fi
exit 0
`

// FakeCompiler writes an executable stand-in for protoc and returns its path.
// Tests using it are skipped on Windows.
func FakeCompiler(t *testing.T, mode CompilerMode) string {
	return FakeCompilerVersion(t, mode, "3.21.12")
}

// FakeCompilerVersion is FakeCompiler reporting the given version
func FakeCompilerVersion(t *testing.T, mode CompilerMode, version string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a POSIX shell script")
	}

	script := strings.NewReplacer("__MODE__", string(mode), "__VERSION__", version).Replace(fakeCompilerScript)
	path := filepath.Join(t.TempDir(), "protoc")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write fake compiler: %v", err)
	}
	return path
}

// FakePlugin writes a placeholder plugin binary and returns its path
func FakePlugin(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "grpc_node_plugin")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("Failed to write fake plugin: %v", err)
	}
	return path
}
