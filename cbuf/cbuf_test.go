// SPDX-License-Identifier: GPL-2.0-or-later

package cbuf

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"govbsp/cmd"
)

func TestWait(t *testing.T) {
	c := CommandBuffer{}
	runCount := 0
	c.SetCommandExecutors([]Efunc{
		func(cb *CommandBuffer, a cmd.Arguments) (bool, error) {
			runCount++
			return true, nil
		}})
	c.AddText("wait\n")
	c.AddText("test\n")
	c.AddText("test\n")
	c.AddText("wait\n")
	c.AddText("test\n")
	c.Execute()
	if runCount != 0 {
		t.Errorf("runCount=%v, want %v", runCount, 0)
	}
	c.Execute()
	if runCount != 2 {
		t.Errorf("runCount=%v, want %v", runCount, 2)
	}
	c.Execute()
	if runCount != 3 {
		t.Errorf("runCount=%v, want %v", runCount, 3)
	}
	if !c.Empty() {
		t.Errorf("Empty()=false after the last line")
	}
}

func TestSplitAndInsert(t *testing.T) {
	c := CommandBuffer{}
	var lines []string
	c.SetCommandExecutors([]Efunc{
		func(cb *CommandBuffer, a cmd.Arguments) (bool, error) {
			lines = append(lines, a.Full())
			return true, nil
		}})
	c.AddText(`mod_precache "a;b.mdl"; mod_purge` + "\n")
	c.InsertText("map_load maps/x.bsp")
	c.Execute()
	want := []string{"map_load maps/x.bsp", `mod_precache "a;b.mdl"`, "mod_purge"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines=%q, want %q", lines, want)
	}
}

func TestExecutorChain(t *testing.T) {
	log, hook := test.NewNullLogger()
	c := CommandBuffer{}
	c.SetLogger(log)
	var order []string
	c.SetCommandExecutors([]Efunc{
		func(cb *CommandBuffer, a cmd.Arguments) (bool, error) {
			order = append(order, "first")
			if a.Argv(0).String() == "fail" {
				return true, errors.New("boom")
			}
			return a.Argv(0).String() == "one", nil
		},
		func(cb *CommandBuffer, a cmd.Arguments) (bool, error) {
			order = append(order, "second")
			return a.Argv(0).String() == "two", nil
		}})
	c.AddText("one\ntwo\nfail\nthree\n")
	c.Execute()
	want := []string{"first", "first", "second", "first", "first", "second"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order=%v, want %v", order, want)
	}
	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Level != logrus.WarnLevel {
			t.Errorf("entry %q logged at %v, want warning", e.Message, e.Level)
		}
	}
	if err, _ := entries[1].Data[logrus.ErrorKey].(error); !errors.Is(err, cmd.ErrUnknownCommand) {
		t.Errorf("second failure = %v, want %v", err, cmd.ErrUnknownCommand)
	}
}
