// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import "testing"

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in     string
		wantF  string
		wantAS string
		wantA  []QArg
	}{
		{
			in:     `say hello world`,
			wantF:  `say hello world`,
			wantAS: `hello world`,
			wantA:  []QArg{{"say"}, {"hello"}, {"world"}},
		},
		{
			in:     `say "hello world"`,
			wantF:  `say "hello world"`,
			wantAS: `hello world`,
			wantA:  []QArg{{"say"}, {"hello world"}},
		},
		{
			in:     ` say_team  foo bar baz `,
			wantF:  `say_team  foo bar baz`,
			wantAS: `foo bar baz`,
			wantA:  []QArg{{"say_team"}, {"foo"}, {"bar"}, {"baz"}},
		},
	} {
		arg := Parse(tc.in)
		if tc.wantF != arg.Full() {
			t.Errorf("Parse(%q).Full()=%q, want %q", tc.in, arg.Full(), tc.wantF)
		}
		if tc.wantAS != arg.ArgumentString() {
			t.Errorf("Parse(%q).ArgumentString()=%q, want %q", tc.in, arg.ArgumentString(), tc.wantAS)
		}
		as := arg.Args()
		if len(tc.wantA) != len(as) {
			t.Fatalf("Parse(%q).Args() has len(%d), want %d", tc.in, len(as), len(tc.wantA))
		}
		for i := range tc.wantA {
			if tc.wantA[i] != as[i] {
				t.Errorf("Arg[%d]=%q, want %q", i, as[i], tc.wantA[i])
			}
		}
	}
}

func TestParseComment(t *testing.T) {
	a := Parse(`mod_precache models/a.mdl // warm it`)
	if got := len(a.Args()); got != 2 {
		t.Errorf("Parse() with comment has %d args, want 2", got)
	}
	if got := a.Argv(5).String(); got != "" {
		t.Errorf("Argv(5) = %q, want empty", got)
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("map_load e1m1; mod_list\n\nset x \"a;b\"\n")
	want := []string{"map_load e1m1", "mod_list", `set x "a;b"`}
	if len(got) != len(want) {
		t.Fatalf("SplitLines() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitLines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
