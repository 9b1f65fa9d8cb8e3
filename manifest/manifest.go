// SPDX-License-Identifier: GPL-2.0-or-later

// Package manifest stores the list of assets to load ahead of a level.
//
// A manifest file is a zstd stream holding one protobuf message:
//
//	message Manifest {
//	  string map = 1;
//	  repeated Entry entries = 2;
//	}
//	message Entry {
//	  string name = 1;
//	  uint32 refs = 2;
//	}
package manifest

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type Entry struct {
	Name string
	// Refs is the reference set the asset was held with.
	Refs uint32
}

type Manifest struct {
	Map     string
	Entries []Entry
}

const (
	fieldMap     protowire.Number = 1
	fieldEntries protowire.Number = 2
	fieldName    protowire.Number = 1
	fieldRefs    protowire.Number = 2
)

func (m *Manifest) Marshal() []byte {
	var b []byte
	if m.Map != "" {
		b = protowire.AppendTag(b, fieldMap, protowire.BytesType)
		b = protowire.AppendString(b, m.Map)
	}
	for _, e := range m.Entries {
		var eb []byte
		eb = protowire.AppendTag(eb, fieldName, protowire.BytesType)
		eb = protowire.AppendString(eb, e.Name)
		if e.Refs != 0 {
			eb = protowire.AppendTag(eb, fieldRefs, protowire.VarintType)
			eb = protowire.AppendVarint(eb, uint64(e.Refs))
		}
		b = protowire.AppendTag(b, fieldEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, eb)
	}
	return b
}

// Unmarshal skips unknown fields.
func Unmarshal(b []byte) (*Manifest, error) {
	m := &Manifest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldMap && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Map = v
			b = b[n:]
		case num == fieldEntries && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e, err := unmarshalEntry(v)
			if err != nil {
				return nil, errors.Wrapf(err, "entry %d", len(m.Entries))
			}
			m.Entries = append(m.Entries, e)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func unmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			e.Name = v
			b = b[n:]
		case num == fieldRefs && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			e.Refs = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if e.Name == "" {
		return e, errors.New("entry without name")
	}
	return e, nil
}

func Write(w io.Writer, m *Manifest) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(m.Marshal()); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func Read(r io.Reader) (*Manifest, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	b, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Wrap(err, "manifest")
	}
	return Unmarshal(b)
}

// Save writes m to path, creating the directory if needed.
func Save(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return errors.Wrap(err, path)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}
