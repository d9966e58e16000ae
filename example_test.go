package curlew_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/curlew-io/curlew"
)

func ExampleNew() {
	h, err := curlew.New(
		curlew.WithURL("https://example.com/api/v1/items"),
		curlew.WithMethod(curlew.MethodGet),
		curlew.WithUserAgent("example/1.0"),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer h.Cleanup()

	fmt.Println("handle built")
	// Output: handle built
}

func ExampleEscape() {
	fmt.Println(curlew.Escape("a b&c"))
	// Output: a%20b%26c
}

func ExampleSingle_Perform() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	}))
	defer ts.Close()

	h, err := curlew.New(curlew.WithURL(ts.URL + "/ping"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer h.Cleanup()

	if err := h.SetupRequestResponse(); err != nil {
		fmt.Println("error:", err)
		return
	}

	_, status, _ := h.Perform(context.Background())
	fmt.Println(status, string(h.Meta().Data()))
	// Output: 200 pong
}

func ExampleNewMulti() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.URL.Path)
	}))
	defer ts.Close()

	var handles []*curlew.Single
	for _, path := range []string{"/a", "/b"} {
		h, err := curlew.New(curlew.WithURL(ts.URL + path))
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if err := h.SetupRequestResponse(); err != nil {
			fmt.Println("error:", err)
			return
		}
		handles = append(handles, h)
	}

	m := curlew.NewMulti(handles...)
	defer m.Cleanup()

	m.Execute(context.Background())

	for _, h := range m.Handles() {
		fmt.Println(h.Meta().Status(), string(h.Meta().Data()))
	}
	// Output:
	// 200 /a
	// 200 /b
}
