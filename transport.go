package client

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/op/go-logging.v1"
)

// ErrResponseID is returned when a response carries a different id than
// the request it answers.
var ErrResponseID = errors.New("JSON-RPC response id does not match request id")

// idTransport rewrites the id of every single JSON-RPC request to the next
// value of its own counter and checks the response against it. The
// caller's original id is restored on the response. Batches and bodies
// that are not JSON objects pass through untouched.
type idTransport struct {
	base   http.RoundTripper
	nextID uint64
	log    *logging.Logger
}

func newIDTransport(base http.RoundTripper, log *logging.Logger) *idTransport {
	return &idTransport{base: base, log: log}
}

// RoundTrip implements http.RoundTripper.
func (t *idTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil {
		return t.base.RoundTrip(req)
	}
	body, err := ioutil.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	origID := gjson.GetBytes(body, "id")
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() || !origID.Exists() {
		return t.base.RoundTrip(withBody(req, body))
	}

	id := atomic.AddUint64(&t.nextID, 1)
	body, err = sjson.SetBytes(body, "id", id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to set request id")
	}
	t.log.Debugf("-> %d %s", id, gjson.GetBytes(body, "method").String())

	resp, err := t.base.RoundTrip(withBody(req, body))
	if err != nil {
		return nil, err
	}
	respBody, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if respID := gjson.GetBytes(respBody, "id"); respID.Type == gjson.Number {
		if respID.Uint() != id {
			return nil, errors.Wrapf(ErrResponseID, "sent %d, received %s", id, respID.Raw)
		}
		if respBody, err = sjson.SetRawBytes(respBody, "id", []byte(origID.Raw)); err != nil {
			return nil, errors.Wrap(err, "failed to restore response id")
		}
	}
	resp.Body = ioutil.NopCloser(bytes.NewReader(respBody))
	resp.ContentLength = int64(len(respBody))
	resp.Header.Del("Content-Length")
	return resp, nil
}

func withBody(req *http.Request, body []byte) *http.Request {
	out := req.Clone(req.Context())
	out.Body = ioutil.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return ioutil.NopCloser(bytes.NewReader(body)), nil
	}
	return out
}
