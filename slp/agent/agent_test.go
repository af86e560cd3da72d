/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package agent

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	slp "github.com/facebook/lighting/slp/protocol"
	"github.com/facebook/lighting/slp/store"
)

type sentPacket struct {
	b    []byte
	addr *net.UDPAddr
}

type fakeConn struct {
	mu      sync.Mutex
	packets []sentPacket
	ch      chan sentPacket
}

func newFakeConn() *fakeConn {
	return &fakeConn{ch: make(chan sentPacket, 64)}
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	p := sentPacket{b: append([]byte{}, b...), addr: addr.(*net.UDPAddr)}
	c.mu.Lock()
	c.packets = append(c.packets, p)
	c.mu.Unlock()
	c.ch <- p
	return len(b), nil
}

// waitFor returns the next sent packet of the wanted function type
func (c *fakeConn) waitFor(t *testing.T, want slp.FunctionID) sentPacket {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-c.ch:
			if slp.DetermineFunctionID(p.b) == want {
				return p
			}
		case <-deadline:
			t.Fatalf("no %s packet was sent", want)
		}
	}
}

// last returns the most recently sent packet, if any
func (c *fakeConn) last() (sentPacket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.packets) == 0 {
		return sentPacket{}, false
	}
	return c.packets[len(c.packets)-1], true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

func testConfig(scopes ...string) Config {
	cfg := DefaultConfig()
	cfg.IP = net.IPv4(10, 0, 0, 9).To4()
	cfg.Port = 42700
	cfg.Scopes = slp.NewScopeSet(scopes...)
	cfg.BootTime = time.Unix(1700000000, 0)
	cfg.StartWait = time.Millisecond
	cfg.Retry = 20 * time.Millisecond
	cfg.RetryMax = 100 * time.Millisecond
	cfg.RegActiveMin = time.Millisecond
	cfg.RegActiveMax = 2 * time.Millisecond
	cfg.DAFindInterval = time.Hour
	cfg.CleanInterval = time.Hour
	return cfg
}

// injectDA makes the agent aware of a DA at the address with the scopes
func injectDA(a *Agent, ip string, scopes slp.ScopeSet) string {
	url := slp.DAServiceType + "://" + ip
	b := slp.BuildDAAdvert(99, true, slp.OK, 5000, url, scopes)
	a.HandlePacket(b, &net.UDPAddr{IP: net.ParseIP(ip), Port: 42700})
	return url
}

func TestScopedRegistration(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one", "two"), conn)
	injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))

	entry := store.NewServiceEntry(slp.NewScopeSet("one", "two"),
		"service:foo://10.0.0.9", 300)
	require.Equal(t, slp.OK, a.RegisterService(entry))

	p := conn.waitFor(t, slp.FunctionSrvReg)
	require.Equal(t, "10.0.0.5", p.addr.IP.String())
	reg, err := slp.UnpackServiceRegistration(p.b)
	require.NoError(t, err)
	require.True(t, reg.Fresh())
	require.Equal(t, "service:foo://10.0.0.9", reg.URL.URL)
	// only the intersection of our scopes and the DA's goes on the wire
	require.True(t, slp.ParseScopeList(reg.ScopeList).Equal(slp.NewScopeSet("one")))

	// ack it; the pending operation is retired
	a.HandlePacket(slp.BuildServiceAck(reg.XID, "en", slp.OK),
		&net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 42700})
	a.mu.Lock()
	require.Empty(t, a.pendingOps)
	require.Len(t, a.refreshTimers, 1)
	a.mu.Unlock()
}

func TestRegistrationRetriesThenMarksBad(t *testing.T) {
	conn := newFakeConn()
	cfg := testConfig("one")
	a := New(cfg, conn)
	daURL := injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))

	entry := store.NewServiceEntry(slp.NewScopeSet("one"), "service:foo://10.0.0.9", 300)
	require.Equal(t, slp.OK, a.RegisterService(entry))

	// all tries carry the same xid
	var xids []uint16
	for i := 0; i < cfg.MCMax; i++ {
		p := conn.waitFor(t, slp.FunctionSrvReg)
		reg, err := slp.UnpackServiceRegistration(p.b)
		require.NoError(t, err)
		xids = append(xids, reg.XID)
	}
	for _, xid := range xids[1:] {
		require.Equal(t, xids[0], xid)
	}

	// after the budget the DA is dropped
	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		_, ok := a.das.Lookup(daURL)
		return !ok && len(a.pendingOps) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRegistrationSuperseded(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))

	entry := store.NewServiceEntry(slp.NewScopeSet("one"), "service:foo://10.0.0.9", 300)
	require.Equal(t, slp.OK, a.RegisterService(entry))
	p := conn.waitFor(t, slp.FunctionSrvReg)
	reg, err := slp.UnpackServiceRegistration(p.b)
	require.NoError(t, err)

	// deregistering while the SrvReg is in flight supersedes it
	require.Equal(t, slp.OK, a.DeRegisterService(entry))
	p = conn.waitFor(t, slp.FunctionSrvDeReg)
	dereg, err := slp.UnpackServiceDeRegistration(p.b)
	require.NoError(t, err)
	require.NotEqual(t, reg.XID, dereg.XID)

	// a late ack for the superseded xid is dropped silently
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 42700}
	a.HandlePacket(slp.BuildServiceAck(reg.XID, "en", slp.OK), src)
	a.mu.Lock()
	_, stillPending := a.pendingOps[opKey(slp.DAServiceType+"://10.0.0.5", "service:foo://10.0.0.9")]
	a.mu.Unlock()
	require.True(t, stillPending)

	// the dereg ack retires it
	a.HandlePacket(slp.BuildServiceAck(dereg.XID, "en", slp.OK), src)
	a.mu.Lock()
	require.Empty(t, a.pendingOps)
	a.mu.Unlock()
}

func TestRegistrationErrorAckDoesNotRetry(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	daURL := injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))

	entry := store.NewServiceEntry(slp.NewScopeSet("one"), "service:foo://10.0.0.9", 300)
	require.Equal(t, slp.OK, a.RegisterService(entry))
	p := conn.waitFor(t, slp.FunctionSrvReg)
	reg, err := slp.UnpackServiceRegistration(p.b)
	require.NoError(t, err)

	a.HandlePacket(slp.BuildServiceAck(reg.XID, "en", slp.ScopeNotSupported),
		&net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 42700})

	a.mu.Lock()
	require.Empty(t, a.pendingOps)
	require.Empty(t, a.refreshTimers)
	_, healthy := a.das.Lookup(daURL)
	a.mu.Unlock()
	// the DA answered, it stays healthy
	require.True(t, healthy)
}

func TestNewDATriggersRegistration(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	entry := store.NewServiceEntry(slp.NewScopeSet("one"), "service:foo://10.0.0.9", 300)
	require.Equal(t, slp.OK, a.RegisterService(entry))
	// no DA yet, nothing sent
	require.Equal(t, 0, conn.count())

	injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))
	p := conn.waitFor(t, slp.FunctionSrvReg)
	require.Equal(t, "10.0.0.5", p.addr.IP.String())
}

func TestDADiscoveryBurst(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	a.Start()
	defer a.Stop()

	p := conn.waitFor(t, slp.FunctionSrvRqst)
	require.Equal(t, slp.ServiceRequestGroup.String(), p.addr.IP.String())
	request, err := slp.UnpackServiceRequest(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.DAServiceType, request.ServiceType)
	require.True(t, request.Multicast())
	require.Empty(t, request.PRList)

	// with no answers the burst ends and the confirming burst repeats the
	// request
	p2 := conn.waitFor(t, slp.FunctionSrvRqst)
	request2, err := slp.UnpackServiceRequest(p2.b)
	require.NoError(t, err)
	require.Equal(t, slp.DAServiceType, request2.ServiceType)
	require.NotEqual(t, request.XID, request2.XID)
}

func TestDiscoveryAddsResponderToPRList(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	a.Start()
	defer a.Stop()

	conn.waitFor(t, slp.FunctionSrvRqst)
	injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))

	// the next round carries the responder in the PR list
	p := conn.waitFor(t, slp.FunctionSrvRqst)
	request, err := slp.UnpackServiceRequest(p.b)
	require.NoError(t, err)
	if len(request.PRList) == 0 {
		// depending on timing this can be the confirming burst's first
		// request, which also carries the PR list
		p = conn.waitFor(t, slp.FunctionSrvRqst)
		request, err = slp.UnpackServiceRequest(p.b)
		require.NoError(t, err)
	}
	require.Len(t, request.PRList, 1)
	require.Equal(t, "10.0.0.5", request.PRList[0].String())
}

func srvRqst(xid uint16, multicast bool, prList []net.IP, serviceType string,
	scopes slp.ScopeSet) []byte {
	return slp.BuildServiceRequest(xid, multicast, prList, serviceType, scopes, "")
}

func TestAnswersSAServiceRequest(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.77"), Port: 42700}

	a.HandlePacket(srvRqst(7, true, nil, slp.SAServiceType, slp.NewScopeSet("one")), src)
	p, ok := conn.last()
	require.True(t, ok)
	require.Equal(t, src.IP.String(), p.addr.IP.String())
	saAdvert, err := slp.UnpackSAAdvert(p.b)
	require.NoError(t, err)
	require.Equal(t, uint16(7), saAdvert.XID)
	require.Equal(t, "service:service-agent://10.0.0.9", saAdvert.URL)

	// scope mismatch: silence
	before := conn.count()
	a.HandlePacket(srvRqst(8, true, nil, slp.SAServiceType, slp.NewScopeSet("other")), src)
	require.Equal(t, before, conn.count())

	// our own IP in the PR list: silence
	a.HandlePacket(srvRqst(9, true, []net.IP{a.cfg.IP}, slp.SAServiceType,
		slp.NewScopeSet("one")), src)
	require.Equal(t, before, conn.count())
}

func TestAnswersUserServiceRequest(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one", "two"), conn)
	entry := store.NewServiceEntry(slp.NewScopeSet("one"), "service:foo://10.0.0.9", 300)
	require.Equal(t, slp.OK, a.Store().Insert(time.Now(), entry, true))
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.77"), Port: 42700}

	a.HandlePacket(srvRqst(20, false, nil, "service:foo", slp.NewScopeSet("one")), src)
	p, _ := conn.last()
	reply, err := slp.UnpackServiceReply(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.OK, reply.Error)
	require.Len(t, reply.URLEntries, 1)
	require.Equal(t, "service:foo://10.0.0.9", reply.URLEntries[0].URL)

	// unicast scope mismatch gets the error back
	a.HandlePacket(srvRqst(21, false, nil, "service:foo", slp.NewScopeSet("other")), src)
	p, _ = conn.last()
	reply, err = slp.UnpackServiceReply(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.ScopeNotSupported, reply.Error)

	// multicast scope mismatch is dropped
	before := conn.count()
	a.HandlePacket(srvRqst(22, true, nil, "service:foo", slp.NewScopeSet("other")), src)
	require.Equal(t, before, conn.count())

	// multicast with no matches is dropped too
	a.HandlePacket(srvRqst(23, true, nil, "service:nothing", slp.NewScopeSet("one")), src)
	require.Equal(t, before, conn.count())

	// but a unicast no-match gets an empty reply
	a.HandlePacket(srvRqst(24, false, nil, "service:nothing", slp.NewScopeSet("one")), src)
	p, _ = conn.last()
	reply, err = slp.UnpackServiceReply(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.OK, reply.Error)
	require.Empty(t, reply.URLEntries)
}

func TestAnswersServiceTypeRequest(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	entry := store.NewServiceEntry(slp.NewScopeSet("one"),
		"service:e133.esta://10.0.0.9/7a70:00000001", 300)
	require.Equal(t, slp.OK, a.Store().Insert(time.Now(), entry, true))
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.77"), Port: 42700}

	a.HandlePacket(slp.BuildServiceTypeRequest(30, false, nil, true, "",
		slp.NewScopeSet("one")), src)
	p, _ := conn.last()
	reply, err := slp.UnpackServiceTypeReply(p.b)
	require.NoError(t, err)
	require.Equal(t, []string{"service:e133.esta"}, reply.ServiceTypes)

	a.HandlePacket(slp.BuildServiceTypeRequest(31, false, nil, false, "esta",
		slp.NewScopeSet("one")), src)
	p, _ = conn.last()
	reply, err = slp.UnpackServiceTypeReply(p.b)
	require.NoError(t, err)
	require.Equal(t, []string{"service:e133.esta"}, reply.ServiceTypes)

	a.HandlePacket(slp.BuildServiceTypeRequest(32, false, nil, false, "",
		slp.NewScopeSet("one")), src)
	p, _ = conn.last()
	reply, err = slp.UnpackServiceTypeReply(p.b)
	require.NoError(t, err)
	require.Empty(t, reply.ServiceTypes)
}

func TestDAMode(t *testing.T) {
	conn := newFakeConn()
	cfg := testConfig("one")
	cfg.EnableDA = true
	a := New(cfg, conn)
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.77"), Port: 42700}

	url := slp.URLEntry{URL: "service:foo://10.0.0.77", Lifetime: 300}
	a.HandlePacket(slp.BuildServiceRegistration(40, true, slp.NewScopeSet("one"),
		url, "service:foo"), src)
	p, _ := conn.last()
	ack, err := slp.UnpackServiceAck(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.OK, ack.Error)
	require.Equal(t, uint16(40), ack.XID)

	// re-registering with different scopes is refused
	a.HandlePacket(slp.BuildServiceRegistration(41, true, slp.NewScopeSet("two"),
		url, "service:foo"), src)
	p, _ = conn.last()
	ack, err = slp.UnpackServiceAck(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.ScopeNotSupported, ack.Error)

	// an update without fresh needs a prior registration
	other := slp.URLEntry{URL: "service:foo://10.0.0.78", Lifetime: 300}
	a.HandlePacket(slp.BuildServiceRegistration(42, false, slp.NewScopeSet("one"),
		other, "service:foo"), src)
	p, _ = conn.last()
	ack, err = slp.UnpackServiceAck(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.InvalidUpdate, ack.Error)

	// deregister
	a.HandlePacket(slp.BuildServiceDeRegistration(43, slp.NewScopeSet("one"), url), src)
	p, _ = conn.last()
	ack, err = slp.UnpackServiceAck(p.b)
	require.NoError(t, err)
	require.Equal(t, slp.OK, ack.Error)

	// a DA answers directory-agent requests with a unicast DAAdvert
	a.HandlePacket(srvRqst(44, true, nil, slp.DAServiceType, slp.NewScopeSet("one")), src)
	p, _ = conn.last()
	daAdvert, err := slp.UnpackDAAdvert(p.b)
	require.NoError(t, err)
	require.Equal(t, "service:directory-agent://10.0.0.9", daAdvert.URL)
	require.NotZero(t, daAdvert.BootTimestamp)
}

func TestSAModeIgnoresRegistrations(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.77"), Port: 42700}

	url := slp.URLEntry{URL: "service:foo://10.0.0.77", Lifetime: 300}
	a.HandlePacket(slp.BuildServiceRegistration(40, true, slp.NewScopeSet("one"),
		url, "service:foo"), src)
	a.HandlePacket(srvRqst(41, true, nil, slp.DAServiceType, slp.NewScopeSet("one")), src)
	require.Equal(t, 0, conn.count())
}

func TestFindServicesViaDA(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	injectDA(a, "10.0.0.5", slp.NewScopeSet("one"))

	results := make(chan []slp.URLEntry, 1)
	a.FindServices("service:foo", func(urls []slp.URLEntry) { results <- urls })

	p := conn.waitFor(t, slp.FunctionSrvRqst)
	require.Equal(t, "10.0.0.5", p.addr.IP.String())
	request, err := slp.UnpackServiceRequest(p.b)
	require.NoError(t, err)
	require.False(t, request.Multicast())
	require.Equal(t, "service:foo", request.ServiceType)

	urls := []slp.URLEntry{{URL: "service:foo://10.0.0.50", Lifetime: 100}}
	a.HandlePacket(slp.BuildServiceReply(request.XID, "en", slp.OK, urls),
		&net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 42700})

	select {
	case got := <-results:
		require.Equal(t, urls, got)
	case <-time.After(time.Second):
		t.Fatal("find never finished")
	}
}

func TestFindServicesMulticastConverges(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)

	results := make(chan []slp.URLEntry, 1)
	a.FindServices("service:foo", func(urls []slp.URLEntry) { results <- urls })

	p := conn.waitFor(t, slp.FunctionSrvRqst)
	request, err := slp.UnpackServiceRequest(p.b)
	require.NoError(t, err)
	require.True(t, request.Multicast())

	urls := []slp.URLEntry{{URL: "service:foo://10.0.0.50", Lifetime: 100}}
	a.HandlePacket(slp.BuildServiceReply(request.XID, "en", slp.OK, urls),
		&net.UDPAddr{IP: net.ParseIP("10.0.0.50"), Port: 42700})

	select {
	case got := <-results:
		require.Equal(t, urls, got)
	case <-time.After(2 * time.Second):
		t.Fatal("find never converged")
	}
}

func TestParseRegistrations(t *testing.T) {
	input := `# services
; more comments

one,two service:foo://10.0.0.1 300
one service:bar://10.0.0.1 200
one service:foo://10.0.0.1 300
bad-line
one service:baz://10.0.0.1 notanumber
`
	services, err := ParseRegistrations(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, services, 2)
	require.Equal(t, "service:foo://10.0.0.1", services[0].URL.URL)
	require.Equal(t, uint16(300), services[0].URL.Lifetime)
	require.True(t, services[0].Scopes.Equal(slp.NewScopeSet("one", "two")))
	require.True(t, services[0].Local)
	require.Equal(t, "service:bar://10.0.0.1", services[1].URL.URL)
}

func TestCounters(t *testing.T) {
	conn := newFakeConn()
	a := New(testConfig("one"), conn)
	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.77"), Port: 42700}

	a.HandlePacket(srvRqst(7, true, nil, slp.SAServiceType, slp.NewScopeSet("one")), src)
	a.HandlePacket([]byte{0x02, 0x08, 0xff}, src) // truncated DAAdvert

	c := a.Counters()
	require.Equal(t, uint64(2), c.PacketsReceived)
	require.Equal(t, uint64(1), c.PacketsSent)
	require.Equal(t, uint64(1), c.ParseErrors)
}
