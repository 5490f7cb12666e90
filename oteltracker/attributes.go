// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oteltracker

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"rivaas.dev/analytics"
)

const (
	attrAccount    = attribute.Key("analytics.account")
	attrPageViewID = attribute.Key("analytics.pageview.id")
	attrAction     = attribute.Key("analytics.action")
	attrURL        = attribute.Key("analytics.url")
	attrHost       = attribute.Key("analytics.host")
	attrRoute      = attribute.Key("http.route")
	attrMethod     = attribute.Key("http.request.method")
	attrStatus     = attribute.Key("http.response.status_code")
	attrUserAgent  = attribute.Key("user_agent.original")
	attrReferrer   = attribute.Key("http.request.header.referer")
	attrLanguage   = attribute.Key("http.request.header.accept_language")

	customVariablePrefix = "analytics.custom_variable."
)

// customVariableKeys are precomputed per slot.
var customVariableKeys = func() [analytics.MaxCustomVariables][2]attribute.Key {
	var keys [analytics.MaxCustomVariables][2]attribute.Key
	for i := range keys {
		base := customVariablePrefix + strconv.Itoa(i+1)
		keys[i] = [2]attribute.Key{
			attribute.Key(base + ".name"),
			attribute.Key(base + ".value"),
		}
	}

	return keys
}()

// spanAttributes builds the span attributes of pv. Empty optional fields are
// left out.
func spanAttributes(account string, pv *analytics.PageView) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 12+2*len(pv.Variables))
	attrs = append(attrs,
		attrPageViewID.String(pv.ID),
		attrAction.String(pv.ActionName),
		attrURL.String(pv.ActionURL),
		attrHost.String(pv.Host),
		attrMethod.String(pv.Method),
		attrStatus.Int(pv.StatusCode),
	)
	if account != "" {
		attrs = append(attrs, attrAccount.String(account))
	}
	if pv.RoutePattern != "" {
		attrs = append(attrs, attrRoute.String(pv.RoutePattern))
	}
	if pv.UserAgent != "" {
		attrs = append(attrs, attrUserAgent.String(pv.UserAgent))
	}
	if pv.Referrer != "" {
		attrs = append(attrs, attrReferrer.String(pv.Referrer))
	}
	if pv.Language != "" {
		attrs = append(attrs, attrLanguage.String(pv.Language))
	}

	for _, v := range pv.Variables {
		if v.Position < 1 || v.Position > analytics.MaxCustomVariables {
			continue
		}
		keys := customVariableKeys[v.Position-1]
		attrs = append(attrs, keys[0].String(v.Name), keys[1].String(v.Value))
	}

	return attrs
}
