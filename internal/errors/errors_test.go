package errors

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "invalid child",
			code:    "F001",
			wantMsg: "Objects are not valid as a child",
			wantCat: CategoryContract,
		},
		{
			name:    "suspended without boundary",
			code:    "F020",
			wantMsg: "A component suspended while rendering, but no fallback UI was specified",
			wantCat: CategoryRender,
		},
		{
			name:    "config error",
			code:    "F061",
			wantMsg: "Invalid configuration",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "F999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestViolation(t *testing.T) {
	err := Violation("F001", "child of type %s", "chan int")
	if got, want := err.Error(), "F001: Objects are not valid as a child (child of type chan int)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsContract(err) {
		t.Error("IsContract = false for F001")
	}
	if IsContract(New("F020")) {
		t.Error("IsContract = true for a render error")
	}
	if IsContract("F001") {
		t.Error("IsContract = true for a string")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryScheduler, "task %d cancelled", 7)
	if err.Message != "task 7 cancelled" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Error() != "task 7 cancelled" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New("F081").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is did not find the wrapped cause")
	}

	var fe *FiberError
	if !stderrors.As(err, &fe) {
		t.Fatal("errors.As failed")
	}
	if fe.Code != "F081" {
		t.Errorf("Code = %q", fe.Code)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "F021") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("F004")
	if FromError(orig, "F021") != orig {
		t.Error("FromError should return an existing FiberError unchanged")
	}

	wrapped := FromError(stderrors.New("boom"), "F021")
	if wrapped.Code != "F021" || wrapped.Wrapped == nil {
		t.Errorf("FromError = %+v", wrapped)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := Violation("F008", "hook 2").
		WithComponentStack([]string{"Counter", "App", "HostRoot"})
	out := err.Format()

	for _, want := range []string{
		"ERROR F008: Rendered a different set of hooks",
		"hook 2",
		"→ Counter",
		"│ App",
		"Hint: Do not call hooks inside conditions or loops.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("F001").WithComponentStack([]string{"List"})
	if got := err.FormatCompact(); got != "List: F001: Objects are not valid as a child" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("F081").Wrap(stderrors.New("403"))

	var decoded map[string]any
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &decoded); jerr != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v", jerr)
	}
	if decoded["code"] != "F081" {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["cause"] != "403" {
		t.Errorf("cause = %v", decoded["cause"])
	}
	if _, ok := decoded["subject"]; ok {
		t.Error("empty subject should be omitted")
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "plain") {
		t.Errorf("Fprint plain error = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	want := []string{"one two", "three", "four five"}
	if len(lines) != len(want) {
		t.Fatalf("wrapText = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRegistry(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Errorf("GetTemplate(%q) not found", code)
			continue
		}
		if tmpl.Message == "" {
			t.Errorf("%s has empty message", code)
		}
		if !strings.HasPrefix(code, "F") {
			t.Errorf("unexpected code %q", code)
		}
	}

	Register("F099", ErrorTemplate{Category: CategoryCLI, Message: "custom"})
	if New("F099").Message != "custom" {
		t.Error("Register did not add template")
	}
}
