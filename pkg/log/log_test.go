package log

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestPrintWithoutContext(t *testing.T) {
	entry := Print(nil)
	if entry == nil {
		t.Fatal("nil entry")
	}
	if len(entry.Data) != 0 {
		t.Errorf("fields = %v, want none for background entries", entry.Data)
	}
}

func TestBotOpFields(t *testing.T) {
	entry := BotOp("628111222333", "dispatch")
	if entry.Data["sender"] != "628111222333" {
		t.Errorf("sender = %v", entry.Data["sender"])
	}
	if entry.Data["op"] != "dispatch" {
		t.Errorf("op = %v", entry.Data["op"])
	}
}

func TestSessionOpFields(t *testing.T) {
	entry := SessionOp("connected")
	if entry.Data["op"] != "connected" {
		t.Errorf("op = %v, want connected", entry.Data["op"])
	}
}

func TestSysErrFields(t *testing.T) {
	cause := errors.New("db down")
	entry := SysErr("chatlog", cause)
	if entry.Data["sys"] != "chatlog" {
		t.Errorf("sys = %v, want chatlog", entry.Data["sys"])
	}
	if entry.Data[logrus.ErrorKey] != cause {
		t.Errorf("error = %v, want the cause", entry.Data[logrus.ErrorKey])
	}
}
