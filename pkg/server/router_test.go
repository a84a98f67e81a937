package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/handler"
	"github.com/devicelab-dev/uia2-server/pkg/platform/mock"
	"github.com/devicelab-dev/uia2-server/pkg/resolver"
	"github.com/devicelab-dev/uia2-server/pkg/session"
	"github.com/devicelab-dev/uia2-server/pkg/uiautomator2"
)

type testServer struct {
	*httptest.Server
	dev  *mock.Device
	sess *session.Session
	ok   *mock.Node
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		dev:  mock.New(mock.Config{}),
		sess: session.New(),
	}
	ts.ok = mock.NewNode(map[string]string{
		"class":       "android.widget.Button",
		"text":        "OK",
		"resource-id": "com.app:id/ok",
	})
	ts.dev.SetRoot(mock.NewNode(map[string]string{"class": "android.widget.FrameLayout"},
		mock.NewNode(map[string]string{"class": "android.widget.TextView", "text": "Title"}),
		ts.ok,
	))
	finder := resolver.New(ts.dev, ts.dev, resolver.Options{RootAttempts: 2, RootInterval: time.Millisecond})
	ts.Server = httptest.NewServer(NewRouter(Deps{
		Session: ts.sess,
		Finder:  finder,
		Status:  &handler.Status{Version: "test", Platform: "13"},
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) client(t *testing.T, prefix string) *uiautomator2.Client {
	t.Helper()
	c := uiautomator2.NewClient(ts.URL + prefix)
	c.SetHTTPClient(ts.Client())
	if err := c.CreateSession(map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	return c
}

func decodeEnvelope(t *testing.T, resp *http.Response) handler.Response {
	t.Helper()
	defer resp.Body.Close()
	var env handler.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestRouter_EndToEnd(t *testing.T) {
	for _, prefix := range []string{"", WDHubPrefix} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			ts := newTestServer(t)
			c := ts.client(t, prefix)

			st, err := c.Status()
			if err != nil || !st.Ready || st.Build.Version != "test" {
				t.Fatalf("Status() = %+v, %v", st, err)
			}
			if c.SessionID() != ts.sess.ID() {
				t.Errorf("client session %q, server session %q", c.SessionID(), ts.sess.ID())
			}

			el, err := c.FindElement(uiautomator2.StrategyID, "com.app:id/ok")
			if err != nil {
				t.Fatalf("FindElement() error: %v", err)
			}
			text, err := el.Text()
			if err != nil || text != "OK" {
				t.Errorf("Text() = %q, %v", text, err)
			}
			class, present, err := el.Attribute("className")
			if err != nil || !present || class != "android.widget.Button" {
				t.Errorf("Attribute(className) = %q, %v, %v", class, present, err)
			}
			_, present, err = el.Attribute("hint")
			if err != nil || present {
				t.Errorf("Attribute(hint) present=%v err=%v; want null", present, err)
			}

			els, err := c.FindElements(uiautomator2.StrategyUIAutomator, `new UiSelector().className("android.widget.TextView")`)
			if err != nil || len(els) != 1 {
				t.Errorf("FindElements() = %d, %v", len(els), err)
			}
		})
	}
}

func TestRouter_StaleElement(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, "")

	el, err := c.FindElement(uiautomator2.StrategyText, "OK")
	if err != nil {
		t.Fatalf("FindElement() error: %v", err)
	}
	ts.dev.Remove(ts.ok)

	if _, err := el.Text(); !uiautomator2.IsNotFound(err) {
		t.Errorf("Text() on removed node = %v, want not-found", err)
	}
}

func TestRouter_UnknownElementID(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/session/" + ts.sess.ID() + "/element/42/attribute/text")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("HTTP status = %d, want 404", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Status != core.StatusNoSuchElement || env.Value != "Element Not found" {
		t.Errorf("envelope = %+v", env)
	}
	if env.SessionID != ts.sess.ID() {
		t.Errorf("sessionId = %q, want %q", env.SessionID, ts.sess.ID())
	}
}

func TestRouter_UnknownCommand(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/nope", "/wd/hub/nope", "/session/x/element/1/click"} {
		resp, err := ts.Client().Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		env := decodeEnvelope(t, resp)
		if env.Status != core.StatusUnknownCommand {
			t.Errorf("POST %s: status = %v, want UnknownCommand", path, env.Status)
		}
		if env.SessionID != ts.sess.ID() {
			t.Errorf("POST %s: sessionId not echoed", path)
		}
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/status", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /status: %v", err)
	}
	if env := decodeEnvelope(t, resp); env.Status != core.StatusUnknownCommand {
		t.Errorf("PUT /status: status = %v, want UnknownCommand", env.Status)
	}
}

func TestRouter_InvalidSelector(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, "")

	_, err := c.FindElement(uiautomator2.StrategyXPath, "//android.widget.Button")
	if err == nil || !strings.Contains(err.Error(), "status 32") {
		t.Errorf("FindElement(xpath) = %v, want invalid selector", err)
	}
}

func TestRouter_DeleteSessionInvalidatesElements(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t, "")

	el, err := c.FindElement(uiautomator2.StrategyText, "OK")
	if err != nil {
		t.Fatalf("FindElement() error: %v", err)
	}
	old := c.SessionID()
	if err := c.DeleteSession(); err != nil {
		t.Fatalf("DeleteSession() error: %v", err)
	}
	if ts.sess.ID() == old {
		t.Error("session id was not rotated")
	}

	resp, err := ts.Client().Get(ts.URL + "/session/" + ts.sess.ID() + "/element/" + el.ID() + "/text")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if env := decodeEnvelope(t, resp); env.Status != core.StatusNoSuchElement {
		t.Errorf("status = %v after delete, want NoSuchElement", env.Status)
	}

	resp, err = ts.Client().Get(ts.URL + "/session/" + old)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if env := decodeEnvelope(t, resp); env.Status != core.StatusNoSuchDriver {
		t.Errorf("old session status = %v, want NoSuchDriver", env.Status)
	}
}

func TestRuntime_ServesRouter(t *testing.T) {
	dev := mock.New(mock.Config{})
	dev.SetRoot(mock.NewNode(map[string]string{"text": "Hi"}))
	sess := session.New()
	router := NewRouter(Deps{
		Session: sess,
		Finder:  resolver.New(dev, dev, resolver.Options{RootInterval: time.Millisecond}),
	})
	wl := &mock.WakeLock{}
	rt, err := New(Options{
		Port:     freePort(t),
		Host:     "127.0.0.1",
		WakeLock: wl,
		OnStop:   sess.Close,
	}, router)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer rt.Stop()

	c := uiautomator2.NewClient("http://" + rt.Addr())
	if err := c.CreateSession(nil); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	if _, err := c.FindElement(uiautomator2.StrategyText, "Hi"); err != nil {
		t.Fatalf("FindElement() error: %v", err)
	}
	if sess.Cache().Len() != 1 {
		t.Errorf("cache Len() = %d, want 1", sess.Cache().Len())
	}

	if err := rt.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if sess.Cache().Len() != 0 {
		t.Error("cache not cleared on stop")
	}
	if wl.Held() {
		t.Error("wake lock held after stop")
	}
}
