// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package statusfeed exposes a Logger's live entry stream over a
// websocket, for a dashboard to render as it happens.
package statusfeed

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"mp4recorder/pkg/reclog"
)

var upgrader = websocket.Upgrader{}

// Handler upgrades each request to a websocket and streams newly
// published log entries as JSON until the client disconnects. Query
// parameters "levels" and "sources" (comma-separated) filter the
// stream; omitted, both pass everything through.
func Handler(logger *reclog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}

		levels, sources, err := parseFilters(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()

		feed, cancel := logger.Subscribe()
		defer cancel()

		for entry := range feed {
			if !levelMatches(entry.Level, levels) || !srcMatches(entry.Src, sources) {
				continue
			}
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		}
	})
}

func parseFilters(query url.Values) (levels []reclog.Level, sources []string, err error) {
	if v := query.Get("levels"); v != "" {
		for _, s := range strings.Split(v, ",") {
			n, convErr := strconv.Atoi(s)
			if convErr != nil {
				return nil, nil, convErr
			}
			levels = append(levels, reclog.Level(n))
		}
	}
	if v := query.Get("sources"); v != "" {
		sources = strings.Split(v, ",")
	}
	return levels, sources, nil
}

func levelMatches(level reclog.Level, levels []reclog.Level) bool {
	if len(levels) == 0 {
		return true
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func srcMatches(src string, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, s := range sources {
		if s == src {
			return true
		}
	}
	return false
}
