// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package session

import (
	"regexp"
	"strings"

	"github.com/tomtom215/oddsgate/internal/subject"
)

// adminHostPrefix marks the staff entry point; connections arriving through
// it are classified as backend regardless of device.
const adminHostPrefix = "admin."

var (
	tabletRe = regexp.MustCompile(`(?i)ipad|tablet|kindle|playbook|silk`)
	mobileRe = regexp.MustCompile(`(?i)mobi|phone|ipod|blackberry|iemobile|opera mini|webos`)
)

// SniffChannel classifies the connection into a delivery channel from the
// request host and user agent. Android reports "Mobile" in phone user
// agents only, so an Android UA without it is a tablet.
func SniffChannel(host, userAgent string) subject.Channel {
	if strings.HasPrefix(strings.ToLower(host), adminHostPrefix) {
		return subject.ChannelBackend
	}
	ua := strings.ToLower(userAgent)
	switch {
	case tabletRe.MatchString(ua):
		return subject.ChannelTablet
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return subject.ChannelTablet
	case mobileRe.MatchString(ua):
		return subject.ChannelMobile
	default:
		return subject.ChannelWeb
	}
}
