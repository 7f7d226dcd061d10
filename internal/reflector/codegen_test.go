package reflector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
)

func boundRecord(t *testing.T, name string, entries ...string) *enumdb.EnumRecord {
	t.Helper()
	rec := &enumdb.EnumRecord{Name: name}
	for _, e := range entries {
		require.NoError(t, rec.AddEntry(enumdb.EnumEntry{CPPName: e, EntryName: e}))
	}
	require.NoError(t, rec.BindValues())
	return rec
}

func TestRegistration_Names(t *testing.T) {
	t.Parallel()
	r := Registration{CaseName: "IPShared", Name: "IPSHARED"}
	assert.Equal(t, "RegisterIPSharedEnums.h", r.HeaderName())
	assert.Equal(t, "RegisterIPSharedEnums.cpp", r.CPPName())
	assert.Equal(t, "REGISTER_IPSHARED_ENUMS_H", r.guard())
	assert.Equal(t, "void Register_IPShared_Enums( void )", r.signature())
	assert.Equal(t, filepath.Join("top", "IPShared", "GeneratedCode"), r.Dir("top", "GeneratedCode"))
}

func TestRegistration_BlocksWalkBaseChain(t *testing.T) {
	t.Parallel()
	root := boundRecord(t, "ERoot", "R0")
	mid := boundRecord(t, "EMid", "M0")
	mid.Base = root
	leaf := boundRecord(t, "ELeaf", "L0")
	leaf.Base = mid

	blocks := Registration{Enums: []*enumdb.EnumRecord{leaf}}.blocks()
	require.Len(t, blocks, 5)
	assert.True(t, blocks[0].Register)
	assert.Equal(t, "ELeaf", blocks[1].Entries[0].Enum)
	assert.Equal(t, "M0", blocks[2].Entries[0].Name)
	assert.Equal(t, "ELeaf", blocks[3].Entries[0].Enum)
	assert.Equal(t, "R0", blocks[4].Entries[0].Name)
}

func TestWrite_HeaderOnlyWhenAbsent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	files, err := newRegistrationFiles()
	require.NoError(t, err)
	r := Registration{CaseName: "Core", Name: "CORE", Enums: []*enumdb.EnumRecord{boundRecord(t, "EOne", "X")}}
	r.Forward = r.Enums

	written, err := files.Write(dir, r)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	written, err = files.Write(dir, r)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "RegisterCoreEnums.cpp")}, written)

	data, err := os.ReadFile(filepath.Join(dir, "RegisterCoreEnums.cpp"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "\r\n")
	assert.NotContains(t, strings.ReplaceAll(text, "\r\n", ""), "\n")
	assert.Contains(t, text, "#include \"stdafx.h\"\r\n\r\n#include \"EnumConversion.h\"")

	require.NoError(t, files.Remove(dir, r))
	require.NoError(t, files.Remove(dir, r))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
