// Package fixture loads hitmatch suites: named cases, each a request and the
// response it is expected to produce.
//
// Suites are YAML or JSON files, conventionally named *.fixture.yaml:
//
//	name: reqres users
//	baseUrl: "{{baseUrl}}"
//	cases:
//	  - name: list users
//	    request:
//	      method: GET
//	      url: /api/users?page=2
//	    expect:
//	      status: 200
//	      headers:
//	        Content-Type: application/json; charset=utf-8
//	        Age: "matchesPattern:\\d+"
//	      bodyFile: users-page-2.json
//
// Expected header values and expected body string leaves follow the
// pattern package convention.
package fixture
