package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
)

func TestResolve_LinkErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		records func() []*enumdb.EnumRecord
		want    error
	}{
		{
			name: "unknown base",
			records: func() []*enumdb.EnumRecord {
				ext := enumOf("EExt", bound("D", "B"))
				ext.ExtendsEnum = "EMissing"
				return []*enumdb.EnumRecord{ext}
			},
			want: ErrUnknownBase,
		},
		{
			name: "self extension",
			records: func() []*enumdb.EnumRecord {
				ext := enumOf("EExt", bound("D", "D"))
				ext.ExtendsEnum = "EExt"
				return []*enumdb.EnumRecord{ext}
			},
			want: ErrSelfExtension,
		},
		{
			name: "bitfield mismatch",
			records: func() []*enumdb.EnumRecord {
				recs := baseAndExtension()
				recs[1].Bitfield = true
				return recs
			},
			want: ErrBitfieldMismatch,
		},
		{
			name: "bad base entry",
			records: func() []*enumdb.EnumRecord {
				recs := baseAndExtension()
				recs[1].Entries[0].BoundName = "Z"
				return recs
			},
			want: enumdb.ErrUnknownBaseEntry,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enums := NewEnums()
			for _, rec := range tt.records() {
				_, err := enums.RegisterParsed(rec)
				require.NoError(t, err)
			}
			assert.ErrorIs(t, enums.Resolve(), tt.want)
		})
	}
}

func TestResolve_BitfieldMismatchBindsNothing(t *testing.T) {
	t.Parallel()
	base := enumOf("EBase", entry("A"), entry("B"))
	ext := enumOf("EExt", bound("C", "B"), entry("D"))
	ext.ExtendsEnum = "EBase"
	ext.Bitfield = true
	plain := enumOf("EAAA", entry("X"), entry("Y"))

	enums := NewEnums()
	for _, rec := range []*enumdb.EnumRecord{base, ext, plain} {
		_, err := enums.RegisterParsed(rec)
		require.NoError(t, err)
	}

	require.ErrorIs(t, enums.Resolve(), ErrBitfieldMismatch)
	for _, rec := range []*enumdb.EnumRecord{base, ext, plain} {
		assert.False(t, rec.ExtensionInitialized, rec.Name)
		assert.Equal(t, make([]uint64, len(rec.Entries)), values(rec), rec.Name)
	}
	assert.Nil(t, ext.Base)
}

func TestResolve_RemovedBase(t *testing.T) {
	t.Parallel()
	enums := NewEnums()
	require.NoError(t, enums.LoadPersisted([]*enumdb.EnumRecord{enumOf("EBase", entry("A"))}))
	ext := enumOf("EExt", bound("D", "A"))
	ext.ExtendsEnum = "EBase"
	_, err := enums.RegisterParsed(ext)
	require.NoError(t, err)

	assert.ErrorIs(t, enums.Resolve(), ErrRemovedBase)
}

func TestResolve_CycleIsReported(t *testing.T) {
	t.Parallel()
	a := enumOf("EA", bound("X", "Y"))
	a.ExtendsEnum = "EB"
	b := enumOf("EB", bound("Y", "X"))
	b.ExtendsEnum = "EA"
	c := enumOf("EC", bound("Z", "X"))
	c.ExtendsEnum = "EA"
	free := enumOf("EFree", entry("ONE"))

	enums := NewEnums()
	for _, rec := range []*enumdb.EnumRecord{a, b, c, free} {
		_, err := enums.RegisterParsed(rec)
		require.NoError(t, err)
	}

	err := enums.Resolve()
	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrUnresolvedExtension)
	assert.Equal(t, []string{"EA", "EB", "EC"}, rerr.Enums)
	assert.True(t, free.ExtensionInitialized)
}

func TestResolve_ChainedBitfieldExtensions(t *testing.T) {
	t.Parallel()
	base := enumOf("EFlags", entry("F_A"), entry("F_B"), bound("F_END", "F_B"))
	base.Bitfield = true
	mid := enumOf("EMore", bound("M_A", "F_END"), entry("M_B"), entry("M_END"))
	mid.Bitfield = true
	mid.ExtendsEnum = "EFlags"
	top := enumOf("ETop", bound("T_A", "M_END"), entry("T_B"))
	top.Bitfield = true
	top.ExtendsEnum = "EMore"

	enums := NewEnums()
	// Registration order must not matter.
	for _, rec := range []*enumdb.EnumRecord{top, mid, base} {
		_, err := enums.RegisterParsed(rec)
		require.NoError(t, err)
	}
	require.NoError(t, enums.Resolve())

	assert.Equal(t, []uint64{1, 2, 2}, values(base))
	assert.Equal(t, []uint64{2, 4, 8}, values(mid))
	assert.Equal(t, []uint64{8, 16}, values(top))

	refs := enums.ReferencedEnums([]*enumdb.EnumRecord{top})
	assert.Equal(t, []*enumdb.EnumRecord{top, mid, base}, refs)
}
