package response

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name        string
		resp        *Response
		wantCode    int
		wantSubject any
		wantHeaders map[string]string
	}{
		{"ok", Ok("hi", nil), 200, "hi", map[string]string{}},
		{"created", Created("made", map[string]string{"x": "y"}), 201, "made", map[string]string{"x": "y"}},
		{"unknown", Unknown(), 209, "", map[string]string{}},
		{"moved", MovedPermanently("/new"), 301, "", map[string]string{"content-type": "text/plain; charset=utf-8", "location": "/new"}},
		{"found", Found("/there"), 302, "", map[string]string{"content-type": "text/plain; charset=utf-8", "location": "/there"}},
		{"see other", SeeOther("/get"), 303, "", map[string]string{"content-type": "text/plain; charset=utf-8", "location": "/get"}},
		{"bad request", BadRequest("nope", nil), 400, "nope", map[string]string{}},
		{"unauthorized default", Unauthorized(nil, nil), 401, "Unauthorized", map[string]string{}},
		{"unauthorized", Unauthorized("login first", nil), 401, "login first", map[string]string{}},
		{"forbidden default", Forbidden("", nil), 403, "Access is Forbidden", map[string]string{}},
		{"not found default", NotFound("", nil), 404, "Mamba resource not found", map[string]string{}},
		{"not found", NotFound("no post", nil), 404, "no post", map[string]string{}},
		{"conflict", Conflict("user", "bob", "taken"), 409, "Conflict for user (bob): taken",
			map[string]string{"x-mamba-subject": "user", "x-mamba-value": "bob"}},
		{"already exists", AlreadyExists("user", 7, "pick another"), 409,
			"Conflict for user (7): user already exists: pick another",
			map[string]string{"x-mamba-subject": "user", "x-mamba-value": "7"}},
		{"internal", InternalServerError("db down"), 500, "db down", map[string]string{"content-type": "text/plain"}},
		{"not implemented", NotImplemented("/feed", "soon"), 501, "Not Implemented: /feed\nsoon", map[string]string{"content-type": "text/plain"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.resp.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.resp.Code, tt.wantCode)
			}
			if tt.resp.Subject != tt.wantSubject {
				t.Errorf("Subject = %#v, want %#v", tt.resp.Subject, tt.wantSubject)
			}
			if len(tt.resp.Headers) != len(tt.wantHeaders) {
				t.Errorf("Headers = %v, want %v", tt.resp.Headers, tt.wantHeaders)
			}
			for k, v := range tt.wantHeaders {
				if tt.resp.Headers[k] != v {
					t.Errorf("Headers[%q] = %q, want %q", k, tt.resp.Headers[k], v)
				}
			}
		})
	}
}

func TestString(t *testing.T) {
	got := Found("/x").String()
	want := `IResponse(302, "", {"content-type": "text/plain; charset=utf-8", "location": "/x"})`
	if got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestWrite_String(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := NotFound("", nil).Write(rec); err != nil {
		t.Fatal(err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec.Body.String() != "Mamba resource not found" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestWrite_JSONSubject(t *testing.T) {
	rec := httptest.NewRecorder()
	Ok(map[string]int{"posts": 3}, nil).Write(rec)

	if rec.Body.String() != `{"posts":3}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestWrite_ExplicitHeadersWin(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalServerError("boom").Write(rec)

	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if rec.Code != 500 {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestWrite_Redirect(t *testing.T) {
	rec := httptest.NewRecorder()
	SeeOther("/posts/1").Write(rec)

	if loc := rec.Header().Get("Location"); loc != "/posts/1" {
		t.Errorf("Location = %q", loc)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("redirect body = %q, want empty", rec.Body.String())
	}
}

func TestWrite_NestedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	Ok(Ok("inner", nil), nil).Write(rec)
	if rec.Body.String() != "inner" {
		t.Errorf("body = %q, want inner", rec.Body.String())
	}
}

func TestWrite_UnencodableSubject(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Ok(make(chan int), nil).Write(rec); err == nil {
		t.Error("Write() should fail for a subject that cannot be encoded")
	}
}

func TestSymbols(t *testing.T) {
	pkg, ok := Symbols[ImportPath+"/response"]
	if !ok {
		t.Fatal("response package symbols missing")
	}
	for _, name := range []string{"Ok", "NotFound", "Response", "Conflict"} {
		if _, ok := pkg[name]; !ok {
			t.Errorf("symbol %s not exported", name)
		}
	}
}
