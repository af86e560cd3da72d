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

/*
Package agent implements the SLPv2 Service Agent engine, with an optional
Directory Agent mode.

Three state machines interlock here. Active DA discovery multicasts SrvRqsts
for service:directory-agent with a growing previous-responder list until a
round adds no new DAs. Passive discovery feeds every unsolicited DAAdvert to
the DA tracker. Registration keeps each local service registered with every
DA whose scopes intersect it, with XID-keyed retransmission, exponential
backoff, and lifetime refresh.
*/
package agent

import (
	"math/rand"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	slp "github.com/facebook/lighting/slp/protocol"
	"github.com/facebook/lighting/slp/store"
)

// PacketConn is the send side of the agent's UDP socket
type PacketConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Counters is a snapshot of the agent's traffic counters
type Counters struct {
	PacketsReceived uint64
	PacketsSent     uint64
	ParseErrors     uint64
	Registrations   uint64
	DACount         int
	ServiceTypes    int
}

// Agent is an SLP Service Agent. All state is guarded by mu; timer callbacks
// re-acquire it, so the effective model is the single threaded reactor the
// protocol assumes.
type Agent struct {
	cfg   Config
	conn  PacketConn
	store *store.Store
	das   *DATracker

	multicastAddr *net.UDPAddr

	mu      sync.Mutex
	running bool
	nextXID uint16

	discovery     daDiscovery
	pendingOps    map[string]*pendingDAOperation
	refreshTimers map[string]*time.Timer
	finds         map[uint16]*pendingFind

	daFindTicker *time.Ticker
	cleanTicker  *time.Ticker
	tickerStop   chan struct{}

	rx, tx, parseErrors, registrations uint64
}

// New creates an agent. The caller owns the receive loop and feeds packets
// in through HandlePacket.
func New(cfg Config, conn PacketConn) *Agent {
	a := &Agent{
		cfg:           cfg,
		conn:          conn,
		store:         store.New(),
		das:           NewDATracker(),
		multicastAddr: &net.UDPAddr{IP: slp.ServiceRequestGroup, Port: cfg.Port},
		pendingOps:    make(map[string]*pendingDAOperation),
		refreshTimers: make(map[string]*time.Timer),
		finds:         make(map[uint16]*pendingFind),
		nextXID:       uint16(rand.Intn(0xffff)),
	}
	a.das.AddNewDACallback(a.onNewDA)
	a.das.AddDAGoneCallback(a.onDAGone)
	return a
}

// Store exposes the service registry, for pre-population and inspection
func (a *Agent) Store() *store.Store { return a.store }

// Tracker exposes the DA tracker
func (a *Agent) Tracker() *DATracker { return a.das }

// Counters returns a snapshot of the agent's counters
func (a *Agent) Counters() Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Counters{
		PacketsReceived: a.rx,
		PacketsSent:     a.tx,
		ParseErrors:     a.parseErrors,
		Registrations:   a.registrations,
		DACount:         a.das.DACount(),
		ServiceTypes:    a.store.ServiceTypeCount(),
	}
}

// Start kicks off DA discovery and the periodic timers
func (a *Agent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.tickerStop = make(chan struct{})

	// stagger the initial discovery so a fleet powering on together doesn't
	// burst in sync
	delay := time.Duration(rand.Int63n(int64(a.cfg.StartWait) + 1))
	time.AfterFunc(delay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.running {
			a.startDiscoveryBurst(false)
		}
	})

	a.daFindTicker = time.NewTicker(a.cfg.DAFindInterval)
	a.cleanTicker = time.NewTicker(a.cfg.CleanInterval)
	go a.tick()

	if a.cfg.EnableDA {
		a.sendLocked(slp.BuildDAAdvert(a.newXIDLocked(), true, slp.OK,
			a.bootTimestamp(), a.daURL(), a.cfg.Scopes), a.multicastDAAddr())
	}
}

// Stop cancels every timer and pending operation. A DA announces shutdown
// with a zero boot timestamp on the way out.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	close(a.tickerStop)
	a.daFindTicker.Stop()
	a.cleanTicker.Stop()

	if a.discovery.timer != nil {
		a.discovery.timer.Stop()
	}
	a.discovery = daDiscovery{}
	for _, op := range a.pendingOps {
		op.cancel()
	}
	a.pendingOps = make(map[string]*pendingDAOperation)
	for _, t := range a.refreshTimers {
		t.Stop()
	}
	a.refreshTimers = make(map[string]*time.Timer)
	for _, f := range a.finds {
		if f.timer != nil {
			f.timer.Stop()
		}
	}
	a.finds = make(map[uint16]*pendingFind)

	if a.cfg.EnableDA {
		a.sendLocked(slp.BuildDAAdvert(a.newXIDLocked(), true, slp.OK,
			0, a.daURL(), a.cfg.Scopes), a.multicastDAAddr())
	}
}

func (a *Agent) tick() {
	for {
		select {
		case <-a.tickerStop:
			return
		case <-a.daFindTicker.C:
			a.mu.Lock()
			if a.running {
				a.startDiscoveryBurst(false)
			}
			a.mu.Unlock()
		case <-a.cleanTicker.C:
			a.mu.Lock()
			a.store.Clean(time.Now())
			a.mu.Unlock()
		}
	}
}

// HandlePacket feeds one received SLP datagram into the agent
func (a *Agent) HandlePacket(b []byte, src *net.UDPAddr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rx++

	switch slp.DetermineFunctionID(b) {
	case slp.FunctionDAAdvert:
		advert, err := slp.UnpackDAAdvert(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleDAAdvert(advert, src)
	case slp.FunctionSrvAck:
		ack, err := slp.UnpackServiceAck(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleSrvAck(ack)
	case slp.FunctionSrvRqst:
		request, err := slp.UnpackServiceRequest(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleSrvRqst(request, src)
	case slp.FunctionSrvRply:
		reply, err := slp.UnpackServiceReply(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleSrvRply(reply, src)
	case slp.FunctionSrvTypeRqst:
		request, err := slp.UnpackServiceTypeRequest(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleSrvTypeRqst(request, src)
	case slp.FunctionSrvReg:
		if !a.cfg.EnableDA {
			return
		}
		reg, err := slp.UnpackServiceRegistration(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleSrvReg(reg, src)
	case slp.FunctionSrvDeReg:
		if !a.cfg.EnableDA {
			return
		}
		dereg, err := slp.UnpackServiceDeRegistration(b)
		if err != nil {
			a.noteParseError(err)
			return
		}
		a.handleSrvDeReg(dereg, src)
	case slp.FunctionAttrRqst:
		// parsed for the logs, never served
		if _, err := slp.UnpackAttributeRequest(b); err != nil {
			a.noteParseError(err)
		}
	default:
		log.Debugf("Ignoring SLP function %d from %s", slp.DetermineFunctionID(b), src)
	}
}

// RegisterService adds a local service and starts registering it with every
// DA covering its scopes
func (a *Agent) RegisterService(entry store.ServiceEntry) slp.ErrorCode {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry.Local = true
	code := a.store.Insert(time.Now(), entry, true)
	if code != slp.OK {
		return code
	}
	for _, da := range a.das.GetDAsForScopes(entry.Scopes) {
		a.scheduleOperation(opRegister, da, entry, a.regDelay())
	}
	return slp.OK
}

// DeRegisterService removes a local service and de-registers it from the
// DAs that have it
func (a *Agent) DeRegisterService(entry store.ServiceEntry) slp.ErrorCode {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry.Local = true
	code := a.store.Remove(entry)
	if code != slp.OK {
		return code
	}
	for _, da := range a.das.GetDAsForScopes(entry.Scopes) {
		a.scheduleOperation(opDeRegister, da, entry, 0)
	}
	return slp.OK
}

// FindServices looks a service type up. With DAs on hand the request goes
// unicast to a minimal covering set of them; otherwise it converges over
// multicast. The callback runs once, on the agent's locked path, with the
// deduplicated results.
func (a *Agent) FindServices(serviceType string, callback func([]slp.URLEntry)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	find := &pendingFind{
		xid:         a.newXIDLocked(),
		serviceType: slp.Canonicalize(serviceType),
		scopes:      a.cfg.Scopes,
		interval:    a.cfg.Retry,
		urls:        make(map[string]slp.URLEntry),
		callback:    callback,
	}
	if das := a.das.GetMinimalCoveringList(a.cfg.Scopes); len(das) > 0 {
		find.waitingOn = make(map[string]*net.UDPAddr, len(das))
		for _, da := range das {
			find.waitingOn[da.URL] = &net.UDPAddr{IP: da.Address, Port: a.cfg.Port}
		}
	} else {
		find.multicast = true
		find.prList = make(map[string]net.IP)
	}
	a.finds[find.xid] = find
	a.sendFind(find)
}

// --- DAAdvert handling -------------------------------------------------

func (a *Agent) handleDAAdvert(advert *slp.DAAdvert, src *net.UDPAddr) {
	// during an active burst, a new responder grows the PR list and restarts
	// the retransmission
	if a.discovery.active {
		key := src.IP.String()
		if _, seen := a.discovery.prList[key]; !seen {
			a.discovery.prList[key] = src.IP
			a.discovery.changed = true
		}
	}
	a.das.NewDAAdvert(advert, src)
}

// onNewDA runs the registration bookkeeping when a DA appears or reboots.
// Called with mu held, from the tracker callback.
func (a *Agent) onNewDA(da DirectoryAgent) {
	if !a.running {
		return
	}
	for _, service := range a.store.GetLocalServices(time.Now(), da.Scopes) {
		a.scheduleOperation(opRegister, da, service, a.regDelay())
	}
}

// onDAGone drops the state attached to a departed DA
func (a *Agent) onDAGone(da DirectoryAgent) {
	for key, op := range a.pendingOps {
		if op.daURL == da.URL {
			op.cancel()
			delete(a.pendingOps, key)
		}
	}
	for key, timer := range a.refreshTimers {
		if op, _ := splitOpKey(key); op == da.URL {
			timer.Stop()
			delete(a.refreshTimers, key)
		}
	}
}

// --- registration state machine ----------------------------------------

// regDelay picks the random pre-registration delay that avoids a thundering
// herd after a DAAdvert wakes every SA on the segment
func (a *Agent) regDelay() time.Duration {
	spread := int64(a.cfg.RegActiveMax - a.cfg.RegActiveMin)
	if spread <= 0 {
		return a.cfg.RegActiveMin
	}
	return a.cfg.RegActiveMin + time.Duration(rand.Int63n(spread))
}

// scheduleOperation queues a SrvReg/SrvDeReg for (service, DA). An existing
// operation for the pair is superseded: its timer dies before the new XID is
// chosen, so a late ack for it is dropped silently.
func (a *Agent) scheduleOperation(kind opKind, da DirectoryAgent,
	service store.ServiceEntry, delay time.Duration) {
	key := opKey(da.URL, service.URL.URL)
	if existing, ok := a.pendingOps[key]; ok {
		existing.cancel()
		delete(a.pendingOps, key)
	}
	if timer, ok := a.refreshTimers[key]; ok {
		timer.Stop()
		delete(a.refreshTimers, key)
	}

	op := &pendingDAOperation{
		kind:     kind,
		xid:      a.newXIDLocked(),
		daURL:    da.URL,
		daAddr:   &net.UDPAddr{IP: da.Address, Port: a.cfg.Port},
		service:  service,
		scopes:   service.Scopes.Intersection(da.Scopes),
		interval: a.cfg.Retry,
	}
	a.pendingOps[key] = op
	if delay <= 0 {
		a.sendOperation(op)
		return
	}
	op.timer = time.AfterFunc(delay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.pendingOps[op.key()] == op {
			a.sendOperation(op)
		}
	})
}

// sendOperation transmits the operation and arms the retry timer. Called
// with mu held.
func (a *Agent) sendOperation(op *pendingDAOperation) {
	var packet []byte
	switch op.kind {
	case opRegister:
		packet = slp.BuildServiceRegistration(op.xid, true, op.scopes,
			op.service.URL, op.service.ServiceType)
	case opDeRegister:
		packet = slp.BuildServiceDeRegistration(op.xid, op.scopes, op.service.URL)
	}
	log.Debugf("Sending %s for %s to %s (xid %d, try %d)",
		op.kind, op.service.URL.URL, op.daURL, op.xid, op.attempts+1)
	a.sendLocked(packet, op.daAddr)
	op.attempts++

	op.timer = time.AfterFunc(op.interval, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.pendingOps[op.key()] != op {
			return
		}
		if op.attempts >= a.cfg.MCMax {
			log.Warnf("DA %s didn't ack %s after %d tries",
				op.daURL, op.kind, op.attempts)
			delete(a.pendingOps, op.key())
			a.das.MarkAsBad(op.daURL)
			return
		}
		// retransmit with the same XID, doubling the wait
		op.interval = minDuration(op.interval*2, a.cfg.RetryMax)
		a.sendOperation(op)
	})
}

func (a *Agent) handleSrvAck(ack *slp.ServiceAck) {
	var op *pendingDAOperation
	for _, candidate := range a.pendingOps {
		if candidate.xid == ack.XID {
			op = candidate
			break
		}
	}
	if op == nil {
		// a cancelled or superseded operation; nothing to do
		log.Debugf("SrvAck with unknown xid %d", ack.XID)
		return
	}
	op.cancel()
	delete(a.pendingOps, op.key())

	if op.kind == opDeRegister {
		log.Debugf("%s de-registered from %s", op.service.URL.URL, op.daURL)
		return
	}
	if ack.Error != slp.OK {
		// the DA is healthy, it just doesn't like us; don't retry
		log.Warnf("DA %s refused registration of %s: %s",
			op.daURL, op.service.URL.URL, ack.Error)
		return
	}
	a.registrations++
	log.Debugf("%s registered with %s", op.service.URL.URL, op.daURL)
	a.scheduleRefresh(op)
}

// scheduleRefresh re-registers before the lifetime runs out
func (a *Agent) scheduleRefresh(op *pendingDAOperation) {
	lifetime := time.Duration(op.service.URL.Lifetime) * time.Second
	delay := lifetime - a.cfg.RegRefresh
	if floor := lifetime * 3 / 4; delay < floor {
		delay = floor
	}
	key := op.key()
	service := op.service
	daURL := op.daURL
	a.refreshTimers[key] = time.AfterFunc(delay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.refreshTimers, key)
		if !a.running {
			return
		}
		da, ok := a.das.Lookup(daURL)
		if !ok {
			return
		}
		a.scheduleOperation(opRegister, da, service, 0)
	})
}

// --- active DA discovery ------------------------------------------------

// startDiscoveryBurst begins a discovery round. Starting while one is
// running is a no-op.
func (a *Agent) startDiscoveryBurst(confirming bool) {
	if a.discovery.active {
		return
	}
	prList := a.discovery.prList
	if !confirming || prList == nil {
		prList = make(map[string]net.IP)
	}
	a.discovery = daDiscovery{
		active:     true,
		confirming: confirming,
		xid:        a.newXIDLocked(),
		prList:     prList,
		interval:   a.cfg.Retry,
	}
	a.sendDiscoveryRequest()
}

// sendDiscoveryRequest multicasts the SrvRqst for DAs and arms the timer.
// Called with mu held.
func (a *Agent) sendDiscoveryRequest() {
	d := &a.discovery
	xid := d.xid
	packet := slp.BuildServiceRequest(d.xid, true, d.prIPs(),
		slp.DAServiceType, a.cfg.Scopes, "")
	a.sendLocked(packet, a.multicastAddr)
	d.attempts++
	d.changed = false

	d.timer = time.AfterFunc(d.interval, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.discovery.active || a.discovery.xid != xid {
			return
		}
		// the burst ends when a round brings no new responders, or the
		// budget runs out
		if !a.discovery.changed || a.discovery.attempts > a.cfg.MCMax {
			a.endDiscoveryBurst()
			return
		}
		a.discovery.interval = minDuration(a.discovery.interval*2, a.cfg.RetryMax)
		a.sendDiscoveryRequest()
	})
}

func (a *Agent) endDiscoveryBurst() {
	confirming := a.discovery.confirming
	a.discovery.active = false
	log.Debugf("DA discovery burst done, %d DAs known", a.das.DACount())
	if confirming || !a.running {
		return
	}
	// RFC 2608 12.2.1: run one more burst to confirm
	time.AfterFunc(a.cfg.Retry, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.running {
			a.startDiscoveryBurst(true)
		}
	})
}

// --- answering queries --------------------------------------------------

func (a *Agent) handleSrvRqst(request *slp.ServiceRequest, src *net.UDPAddr) {
	if a.inPRList(request.PRList) {
		return
	}
	serviceType := slp.Canonicalize(request.ServiceType)
	requested := slp.ParseScopeList(request.ScopeList)

	switch serviceType {
	case slp.SAServiceType:
		if !requested.Empty() && !requested.Intersects(a.cfg.Scopes) {
			return
		}
		a.sendLocked(slp.BuildSAAdvert(request.XID, false, a.saURL(), a.cfg.Scopes), src)
	case slp.DAServiceType:
		// only a DA answers; SAs stay quiet so they don't end up in the
		// requester's DA table
		if !a.cfg.EnableDA {
			return
		}
		if !requested.Empty() && !requested.Intersects(a.cfg.Scopes) {
			return
		}
		a.sendLocked(slp.BuildDAAdvert(request.XID, false, slp.OK,
			a.bootTimestamp(), a.daURL(), a.cfg.Scopes), src)
	default:
		scopes := requested.Intersection(a.cfg.Scopes)
		if scopes.Empty() {
			// a multicast mismatch is dropped per the RFC, a unicast one
			// gets the error back
			if !request.Multicast() {
				a.sendLocked(slp.BuildServiceReply(request.XID, request.Language,
					slp.ScopeNotSupported, nil), src)
			}
			return
		}
		urls := a.store.Lookup(time.Now(), scopes, serviceType, 0)
		if len(urls) == 0 && request.Multicast() {
			return
		}
		a.sendLocked(slp.BuildServiceReply(request.XID, request.Language, slp.OK, urls), src)
	}
}

func (a *Agent) handleSrvTypeRqst(request *slp.ServiceTypeRequest, src *net.UDPAddr) {
	if a.inPRList(request.PRList) {
		return
	}
	requested := slp.ParseScopeList(request.ScopeList)
	scopes := requested.Intersection(a.cfg.Scopes)
	if scopes.Empty() {
		if !request.Multicast() {
			a.sendLocked(slp.BuildServiceTypeReply(request.XID,
				slp.ScopeNotSupported, nil), src)
		}
		return
	}
	var types []string
	if request.IncludeAll {
		types = a.store.GetAllServiceTypes(scopes)
	} else {
		types = a.store.GetServiceTypesByNamingAuth(request.NamingAuthority, scopes)
	}
	if len(types) == 0 && request.Multicast() {
		return
	}
	a.sendLocked(slp.BuildServiceTypeReply(request.XID, slp.OK, types), src)
}

func (a *Agent) handleSrvRply(reply *slp.ServiceReply, src *net.UDPAddr) {
	find, ok := a.finds[reply.XID]
	if !ok {
		log.Debugf("SrvRply with unknown xid %d from %s", reply.XID, src)
		return
	}
	if reply.Error != slp.OK {
		log.Infof("SrvRply error %s from %s", reply.Error, src)
	}
	for _, u := range reply.URLEntries {
		find.urls[u.URL] = u
	}
	if find.multicast {
		key := src.IP.String()
		if _, seen := find.prList[key]; !seen {
			find.prList[key] = src.IP
			find.changed = true
		}
		return
	}
	// unicast: cross this DA off
	for daURL, addr := range find.waitingOn {
		if addr.IP.Equal(src.IP) {
			delete(find.waitingOn, daURL)
		}
	}
	if len(find.waitingOn) == 0 {
		a.finishFind(find)
	}
}

// sendFind transmits a find round and arms its timer. Called with mu held.
func (a *Agent) sendFind(find *pendingFind) {
	if find.multicast {
		prIPs := make([]net.IP, 0, len(find.prList))
		for _, ip := range find.prList {
			prIPs = append(prIPs, ip)
		}
		a.sendLocked(slp.BuildServiceRequest(find.xid, true, prIPs,
			find.serviceType, find.scopes, ""), a.multicastAddr)
	} else {
		for _, addr := range find.waitingOn {
			a.sendLocked(slp.BuildServiceRequest(find.xid, false, nil,
				find.serviceType, find.scopes, ""), addr)
		}
	}
	find.attempts++
	find.changed = false

	find.timer = time.AfterFunc(find.interval, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.finds[find.xid] != find {
			return
		}
		done := find.attempts >= a.cfg.MCMax
		if find.multicast && !find.changed && find.attempts > 1 {
			done = true
		}
		if done {
			if !find.multicast {
				// non-responders burned their chance
				for daURL := range find.waitingOn {
					a.das.MarkAsBad(daURL)
				}
			}
			a.finishFind(find)
			return
		}
		find.interval = minDuration(find.interval*2, a.cfg.RetryMax)
		a.sendFind(find)
	})
}

// finishFind delivers results and forgets the operation. Called with mu
// held.
func (a *Agent) finishFind(find *pendingFind) {
	if find.timer != nil {
		find.timer.Stop()
	}
	delete(a.finds, find.xid)
	find.callback(find.results())
}

// --- DA mode ------------------------------------------------------------

func (a *Agent) handleSrvReg(reg *slp.ServiceRegistration, src *net.UDPAddr) {
	entry := store.ServiceEntry{
		Scopes:      slp.ParseScopeList(reg.ScopeList),
		ServiceType: slp.Canonicalize(reg.ServiceType),
		URL:         reg.URL,
	}
	if entry.ServiceType == "" {
		entry.ServiceType = slp.ServiceFromURL(reg.URL.URL)
	}
	code := a.store.Insert(time.Now(), entry, reg.Fresh())
	a.sendLocked(slp.BuildServiceAck(reg.XID, reg.Language, code), src)
}

func (a *Agent) handleSrvDeReg(dereg *slp.ServiceDeRegistration, src *net.UDPAddr) {
	entry := store.ServiceEntry{
		Scopes:      slp.ParseScopeList(dereg.ScopeList),
		ServiceType: slp.ServiceFromURL(dereg.URL.URL),
		URL:         dereg.URL,
	}
	code := a.store.Remove(entry)
	a.sendLocked(slp.BuildServiceAck(dereg.XID, dereg.Language, code), src)
}

// --- helpers ------------------------------------------------------------

func (a *Agent) sendLocked(b []byte, addr *net.UDPAddr) {
	if _, err := a.conn.WriteTo(b, addr); err != nil {
		log.Warnf("Failed to send to %s: %v", addr, err)
		return
	}
	a.tx++
}

func (a *Agent) noteParseError(err error) {
	a.parseErrors++
	log.Infof("Dropping packet: %v", err)
}

func (a *Agent) inPRList(prList []net.IP) bool {
	for _, ip := range prList {
		if ip.Equal(a.cfg.IP) {
			return true
		}
	}
	return false
}

func (a *Agent) newXIDLocked() uint16 {
	a.nextXID++
	if a.nextXID == 0 {
		a.nextXID = 1
	}
	return a.nextXID
}

func (a *Agent) saURL() string {
	return slp.SAServiceType + "://" + a.cfg.IP.String()
}

func (a *Agent) daURL() string {
	return slp.DAServiceType + "://" + a.cfg.IP.String()
}

func (a *Agent) bootTimestamp() uint32 {
	return uint32(a.cfg.BootTime.Unix())
}

func (a *Agent) multicastDAAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: slp.DAAdvertGroup, Port: a.cfg.Port}
}

func splitOpKey(key string) (daURL, serviceURL string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
