package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway() Gateway {
	return NewGateway(nil, logrus.WithField("test", true))
}

func testCreds(endpoint string) Credentials {
	return Credentials{
		Tenant:     "tenant-a",
		Endpoint:   endpoint,
		Identifier: "ident",
		Secret:     "shh",
	}
}

func TestCallInjectsCredentialsAndResponseType(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}))
	defer srv.Close()

	_, err := testGateway().Call(context.Background(), testCreds(srv.URL), ActionGetStats, map[string]string{"extra": "1"})
	require.NoError(t, err)

	assert.Equal(t, "GetStats", form["action"][0])
	assert.Equal(t, "ident", form["identifier"][0])
	assert.Equal(t, "shh", form["secret"][0])
	assert.Equal(t, "json", form["responsetype"][0])
	assert.Equal(t, "1", form["extra"][0])
}

func TestCallUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","message":"Invalid IP"}`))
	}))
	defer srv.Close()

	_, err := testGateway().Call(context.Background(), testCreds(srv.URL), ActionGetStats, nil)
	require.Error(t, err)

	uerr, ok := err.(*Error)
	require.True(t, ok)
	assert.False(t, uerr.IsTransport(), "a rejection carries the HTTP code")
	assert.Equal(t, http.StatusOK, uerr.HTTPCode)
	assert.Contains(t, uerr.Error(), "Invalid IP")
}

func TestCallTransportFailure(t *testing.T) {
	// Reserve a port and close it so the connect fails immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := testGateway().Call(context.Background(), testCreds(endpoint), ActionGetStats, nil)
	require.Error(t, err)

	uerr, ok := err.(*Error)
	require.True(t, ok)
	assert.True(t, uerr.IsTransport())
	assert.Equal(t, 0, uerr.HTTPCode)
}

func TestCallUndecodableBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := testGateway().Call(context.Background(), testCreds(srv.URL), ActionGetStats, nil)
	require.Error(t, err)

	uerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, uerr.HTTPCode)
}

func TestGetClientsDomainsNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "200", r.PostForm.Get("limitnum"))
		assert.Equal(t, "200", r.PostForm.Get("limitstart"))
		_, _ = w.Write([]byte(`{
			"result":"success",
			"totalresults":"2",
			"domains":{"domain":[
				{"id":101,"domainname":"alpha.com","status":"Active","expirydate":"2027-01-01"},
				{"id":"102","domainname":"beta.com","status":"Pending Transfer"}
			]}
		}`))
	}))
	defer srv.Close()

	page, err := testGateway().GetClientsDomains(context.Background(), testCreds(srv.URL), 200, 200, "")
	require.NoError(t, err)

	require.Len(t, page.Domains, 2)
	assert.Equal(t, 2, page.TotalResults)
	assert.Equal(t, "101", page.Domains[0].ExternalID)
	assert.Equal(t, "alpha.com", page.Domains[0].Name)
	assert.Equal(t, "102", page.Domains[1].ExternalID)
	assert.Equal(t, "Pending Transfer", string(page.Domains[1].Status))
	assert.True(t, page.LastPage())
}

func TestGetNameservers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "101", r.PostForm.Get("domainid"))
		_, _ = w.Write([]byte(`{"result":"success","ns1":"ns1.example.net","ns2":"ns2.example.net"}`))
	}))
	defer srv.Close()

	ns, err := testGateway().GetNameservers(context.Background(), testCreds(srv.URL), "101")
	require.NoError(t, err)
	assert.Equal(t, "ns1.example.net", ns.NS1)
	assert.Equal(t, "ns2.example.net", ns.NS2)
	assert.Empty(t, ns.NS5)
}

func TestUpdateNameserversDefaultMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}))
	defer srv.Close()

	msg, err := testGateway().UpdateNameservers(context.Background(), testCreds(srv.URL), "alpha.com", "ns1.x", "ns2.x")
	require.NoError(t, err)
	assert.Equal(t, "Nameservers updated successfully", msg)
}

func TestLimiterPacesCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}))
	defer srv.Close()

	gw := NewGateway(NewLimiter(50*time.Millisecond, 1), logrus.WithField("test", true))
	creds := testCreds(srv.URL)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := gw.Call(context.Background(), creds, ActionGetStats, nil)
		require.NoError(t, err)
	}

	// First call gets the burst token, the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
