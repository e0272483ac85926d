package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	env := newTestEnv(t)
	env.run("ingest", env.file("ADL-1001.txt", "a"))
	env.run("ingest", env.file("ADL-1002.txt", "b"))

	env.contains(env.run("tag", "add", "ADL-1001", "finance", "urgent"), `Added "finance", "urgent" to ADL-1001`)
	env.run("tag", "add", "ADL-1002", "finance")

	env.equals(env.run("tag", "ls", "ADL-1001"), "finance\nurgent")
	env.equals(env.run("tag", "find", "finance"), "ADL-1001\nADL-1002")

	all := env.run("tag", "ls")
	env.contains(all, "finance")
	env.contains(all, "urgent")

	env.run("tag", "rm", "ADL-1001", "urgent")
	env.equals(env.run("tag", "ls", "ADL-1001"), "finance")

	var codes []string
	require.NoError(t, json.Unmarshal([]byte(env.stdout("tag", "find", "urgent", "-o", "json")), &codes))
	assert.Empty(t, codes)
}

func TestTag_Invalid(t *testing.T) {
	env := newTestEnv(t)
	env.run("ingest", env.file("ADL-1001.txt", "a"))

	_, err := env.runErr("tag", "add", "ADL-1001", "a,b")
	assert.Error(t, err)

	_, err = env.runErr("tag", "add", "ADL-9999", "x")
	assert.Error(t, err)
}
