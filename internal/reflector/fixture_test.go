package reflector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const coreProject = `<?xml version="1.0" encoding="utf-8"?>
<Project DefaultTargets="Build" ToolsVersion="4.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <ItemGroup>
    <ClInclude Include="Types.h" />
    <ClInclude Include="Sub\Flags.h" />
    <ClInclude Include="GeneratedCode\RegisterCoreEnums.h" />
  </ItemGroup>
  <ItemGroup>
    <ClCompile Include="Types.cpp" />
  </ItemGroup>
</Project>
`

const gameProject = `<?xml version="1.0" encoding="utf-8"?>
<Project xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <ItemGroup>
    <ClInclude Include="Modes.h" />
  </ItemGroup>
</Project>
`

const typesHeader = `#pragma once

//:EnumBegin()
enum EBase
{
	A,		//:EnumEntry( "A" )
	B,		//:EnumEntry( "B" )
	C		//:EnumEntry( "C" )
};
//:EnumEnd
`

const flagsHeader = `#pragma once

namespace Core
{
	//:EnumBegin( BITFIELD )
	enum EFlags
	{
		EF_READ = 1 << 0,	//:EnumEntry( "Read" )
		EF_WRITE,			//:EnumEntry( "Write" )
		EF_EXEC				//:EnumEntry( "Exec" )
	};
	//:EnumEnd
}
`

const modesHeader = `#pragma once

//:EnumBegin( extends EBase )
enum EExt
{
	D = B,	//:EnumEntry( "D" )
	E,		//:EnumEntry( "E" )
	F		//:EnumEntry( "F" )
};
//:EnumEnd
`

// writeTree lays out a two-project source tree under a temp directory and
// returns its path.
func writeTree(t *testing.T) string {
	t.Helper()
	top := t.TempDir()
	files := map[string]string{
		"Core/Core.vcxproj":                      coreProject,
		"Core/Types.h":                           typesHeader,
		"Core/Sub/Flags.h":                       flagsHeader,
		"Core/GeneratedCode/RegisterCoreEnums.h": "// stale\n",
		"Game/Game.vcxproj":                      gameProject,
		"Game/Modes.h":                           modesHeader,
		"PugiXML/PugiXML.vcxproj":                gameProject,
		"PugiXML/Modes.h":                        modesHeader,
		"README.txt":                             "not a project\n",
	}
	for rel, content := range files {
		writeFile(t, filepath.Join(top, filepath.FromSlash(rel)), content)
	}
	return top
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// touch rewrites a file and moves its modification time forward.
func touch(t *testing.T, path, content string) {
	t.Helper()
	writeFile(t, path, content)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
}

func testOptions(top string) Options {
	return Options{
		Mode:            ModeNormal,
		TopLevelDir:     top,
		BuildSuffix:     "D64",
		DatabasePath:    filepath.Join(top, "Run", "EnumReflectionDB.toml"),
		SkippedProjects: []string{"GTEST-MD", "PLATFORM", "PLATFORMTEST", "PUGIXML"},
	}
}
