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
	"testing"

	"github.com/stretchr/testify/require"

	slp "github.com/facebook/lighting/slp/protocol"
)

func advert(url string, boot uint32, scopes slp.ScopeSet) *slp.DAAdvert {
	return &slp.DAAdvert{
		Error:         slp.OK,
		BootTimestamp: boot,
		URL:           url,
		ScopeList:     scopes.EscapedString(),
	}
}

func daSource(ip string) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: 427}
}

func TestTrackerNewDA(t *testing.T) {
	tracker := NewDATracker()
	var seen []string
	tracker.AddNewDACallback(func(da DirectoryAgent) { seen = append(seen, da.URL) })

	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 100,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	require.Equal(t, 1, tracker.DACount())
	require.Equal(t, []string{"service:directory-agent://10.0.0.5"}, seen)

	da, ok := tracker.Lookup("service:directory-agent://10.0.0.5")
	require.True(t, ok)
	require.Equal(t, "10.0.0.5", da.Address.String())
	require.Equal(t, uint32(100), da.BootTimestamp)

	// the same advert again is a no-op
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 100,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	require.Len(t, seen, 1)
}

func TestTrackerRebootRenotifies(t *testing.T) {
	tracker := NewDATracker()
	notified := 0
	tracker.AddNewDACallback(func(DirectoryAgent) { notified++ })

	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 100,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	// a reboot bumps the timestamp and invalidates prior registrations
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 200,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	require.Equal(t, 2, notified)

	// so does a scope change
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 200,
		slp.NewScopeSet("one", "two")), daSource("10.0.0.5"))
	require.Equal(t, 3, notified)
}

func TestTrackerShutdown(t *testing.T) {
	tracker := NewDATracker()
	var gone []string
	tracker.AddDAGoneCallback(func(da DirectoryAgent) { gone = append(gone, da.URL) })

	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 100,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	// boot timestamp zero announces shutdown
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.5", 0,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	require.Equal(t, 0, tracker.DACount())
	require.Equal(t, []string{"service:directory-agent://10.0.0.5"}, gone)
}

func TestTrackerRejectsBadAdverts(t *testing.T) {
	tracker := NewDATracker()
	bad := advert("service:directory-agent://10.0.0.5", 100, slp.NewScopeSet("one"))
	bad.Error = slp.DABusyNow
	tracker.NewDAAdvert(bad, daSource("10.0.0.5"))

	tracker.NewDAAdvert(advert("service:printer://10.0.0.5", 100,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	tracker.NewDAAdvert(advert("service:directory-agent://nonsense", 100,
		slp.NewScopeSet("one")), daSource("10.0.0.5"))
	require.Equal(t, 0, tracker.DACount())
}

func TestTrackerScopeQueries(t *testing.T) {
	tracker := NewDATracker()
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.1", 1,
		slp.NewScopeSet("one", "two")), daSource("10.0.0.1"))
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.2", 1,
		slp.NewScopeSet("three")), daSource("10.0.0.2"))

	das := tracker.GetDAsForScopes(slp.NewScopeSet("two"))
	require.Len(t, das, 1)
	require.Equal(t, "service:directory-agent://10.0.0.1", das[0].URL)
	require.Empty(t, tracker.GetDAsForScopes(slp.NewScopeSet("four")))
}

func TestTrackerMinimalCoveringList(t *testing.T) {
	tracker := NewDATracker()
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.1", 1,
		slp.NewScopeSet("s1", "s2")), daSource("10.0.0.1"))
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.2", 1,
		slp.NewScopeSet("s3", "s4")), daSource("10.0.0.2"))
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.3", 1,
		slp.NewScopeSet("s1", "s2", "s3", "s4")), daSource("10.0.0.3"))

	// one DA covers everything
	cover := tracker.GetMinimalCoveringList(slp.NewScopeSet("s1", "s2", "s3", "s4"))
	require.Len(t, cover, 1)
	require.Equal(t, "service:directory-agent://10.0.0.3", cover[0].URL)

	// either {A, B} or {C} is a minimum cover for {s1, s4}
	cover = tracker.GetMinimalCoveringList(slp.NewScopeSet("s1", "s4"))
	switch len(cover) {
	case 1:
		require.Equal(t, "service:directory-agent://10.0.0.3", cover[0].URL)
	case 2:
		urls := []string{cover[0].URL, cover[1].URL}
		require.ElementsMatch(t, []string{
			"service:directory-agent://10.0.0.1",
			"service:directory-agent://10.0.0.2",
		}, urls)
	default:
		t.Fatalf("cover of %d DAs is not minimal", len(cover))
	}

	// scopes nobody covers are skipped
	cover = tracker.GetMinimalCoveringList(slp.NewScopeSet("s1", "s9"))
	require.Len(t, cover, 1)
}

func TestTrackerMarkAsBad(t *testing.T) {
	tracker := NewDATracker()
	tracker.NewDAAdvert(advert("service:directory-agent://10.0.0.1", 1,
		slp.NewScopeSet("one")), daSource("10.0.0.1"))
	tracker.MarkAsBad("service:directory-agent://10.0.0.1")
	require.Equal(t, 0, tracker.DACount())
	// unknown URLs are fine
	tracker.MarkAsBad("service:directory-agent://10.0.0.9")
}
