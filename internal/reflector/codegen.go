package reflector

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
	"github.com/papapumpkin/ccgtools/internal/fsutil"
)

const bannerTemplate = `{{define "banner"}}/**********************************************************************************************************************

	{{.}}
		A component that registers project-specific enum conversions.
		DO NOT EDIT THIS FILE; it is automatically generated.

**********************************************************************************************************************/

{{end}}`

const headerTemplate = bannerTemplate + `{{template "banner" .FileName}}#ifndef {{.Guard}}
#define {{.Guard}}

{{.Signature}};

#endif // {{.Guard}}
`

const cppTemplate = bannerTemplate + `{{template "banner" .FileName}}#include "stdafx.h"

#include "EnumConversion.h"

{{range .Forward}}{{if .Namespace}}namespace {{.Namespace}}
{
	enum {{.Name}};
}
{{else}}enum {{.Name}};
{{end}}{{end}}
{{.Signature}}
{
{{range .Blocks}}{{if .Register}}	CEnumConverter::Register_Enum< {{.Enum}} >( "{{.Enum}}", {{.Flags}} );
{{end}}{{range .Entries}}	CEnumConverter::Register_Enum_Entry( "{{.Name}}", static_cast< {{.Enum}} >( {{.Value}} ) );
{{end}}
{{end}}}
`

type conversionLine struct {
	Name  string
	Enum  string
	Value uint64
}

type conversionBlock struct {
	Register bool
	Enum     string
	Flags    string
	Entries  []conversionLine
}

type registrationFiles struct {
	header *template.Template
	cpp    *template.Template
}

func newRegistrationFiles() (*registrationFiles, error) {
	h, err := template.New("header").Parse(headerTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing header template: %w", err)
	}
	c, err := template.New("cpp").Parse(cppTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing cpp template: %w", err)
	}
	return &registrationFiles{header: h, cpp: c}, nil
}

// Registration describes the generated files of one project.
type Registration struct {
	CaseName string // project name as spelled on disk
	Name     string // upper-cased project name
	// Enums are the project's own enums, bound and linked.
	Enums []*enumdb.EnumRecord
	// Forward lists every enum the .cpp refers to, including bases from
	// other projects.
	Forward []*enumdb.EnumRecord
}

// Dir returns the generated-code directory of the project.
func (r Registration) Dir(top, generatedDir string) string {
	return filepath.Join(top, r.CaseName, generatedDir)
}

// HeaderName returns the registration header file name.
func (r Registration) HeaderName() string { return "Register" + r.CaseName + "Enums.h" }

// CPPName returns the registration source file name.
func (r Registration) CPPName() string { return "Register" + r.CaseName + "Enums.cpp" }

func (r Registration) guard() string { return "REGISTER_" + r.Name + "_ENUMS_H" }

func (r Registration) signature() string {
	return "void Register_" + r.CaseName + "_Enums( void )"
}

// blocks builds the conversion registrations: each enum registers itself,
// then converts in both directions with every enum along its base chain.
func (r Registration) blocks() []conversionBlock {
	var out []conversionBlock
	for _, rec := range r.Enums {
		flags := "CEP_NONE"
		if rec.Bitfield {
			flags = "CEP_BITFIELD"
		}
		out = append(out, conversionBlock{
			Register: true,
			Enum:     rec.FullName(),
			Flags:    flags,
			Entries:  conversions(rec, rec),
		})
		for base := rec.Base; base != nil; base = base.Base {
			out = append(out,
				conversionBlock{Entries: conversions(rec, base)},
				conversionBlock{Entries: conversions(base, rec)},
			)
		}
	}
	return out
}

// conversions registers the named entries of from as values of as.
func conversions(from, as *enumdb.EnumRecord) []conversionLine {
	var out []conversionLine
	for _, e := range from.RegisteredEntries() {
		out = append(out, conversionLine{Name: e.EntryName, Enum: as.FullName(), Value: e.Value})
	}
	return out
}

func (f *registrationFiles) renderHeader(r Registration) ([]byte, error) {
	var buf bytes.Buffer
	err := f.header.Execute(&buf, map[string]string{
		"FileName":  r.HeaderName(),
		"Guard":     r.guard(),
		"Signature": r.signature(),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", r.HeaderName(), err)
	}
	return crlf(buf.Bytes()), nil
}

func (f *registrationFiles) renderCPP(r Registration) ([]byte, error) {
	var buf bytes.Buffer
	err := f.cpp.Execute(&buf, map[string]any{
		"FileName":  r.CPPName(),
		"Signature": r.signature(),
		"Forward":   r.Forward,
		"Blocks":    r.blocks(),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", r.CPPName(), err)
	}
	return crlf(buf.Bytes()), nil
}

// crlf converts line endings for the Windows toolchain that consumes the
// generated files.
func crlf(b []byte) []byte {
	return []byte(strings.ReplaceAll(string(b), "\n", "\r\n"))
}

// Write emits the registration files under dir. The header is only written
// when absent; the source file is always rewritten. It returns the paths
// written.
func (f *registrationFiles) Write(dir string, r Registration) ([]string, error) {
	var written []string
	headerPath := filepath.Join(dir, r.HeaderName())
	if _, err := os.Stat(headerPath); os.IsNotExist(err) {
		data, err := f.renderHeader(r)
		if err != nil {
			return nil, err
		}
		if err := fsutil.WriteFileAtomic(headerPath, data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", headerPath, err)
		}
		written = append(written, headerPath)
	}

	cppPath := filepath.Join(dir, r.CPPName())
	data, err := f.renderCPP(r)
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(cppPath, data); err != nil {
		return nil, fmt.Errorf("writing %s: %w", cppPath, err)
	}
	return append(written, cppPath), nil
}

// Remove deletes the registration files under dir if present.
func (f *registrationFiles) Remove(dir string, r Registration) error {
	for _, name := range []string{r.HeaderName(), r.CPPName()} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing generated file: %w", err)
		}
	}
	return nil
}
