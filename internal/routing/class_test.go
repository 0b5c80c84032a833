package routing

import "testing"

func TestClassifyPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want RouteClass
	}{
		{path: "/payroll/api/runs:validate", want: RouteClassInternalAPI},
		{path: "/payroll/api/runs/previous", want: RouteClassInternalAPI},
		{path: "/iam/api/sessions", want: RouteClassInternalAPI},
		{path: "/payrollapi/thing", want: RouteClassUI},
		{path: "/api", want: RouteClassUI},
		{path: "/healthz", want: RouteClassOps},
		{path: "/ops/ready", want: RouteClassOps},
		{path: "/assets/app.css", want: RouteClassStatic},
		{path: "/static/logo.png", want: RouteClassStatic},
		{path: "/", want: RouteClassUI},
		{path: "/login", want: RouteClassUI},
	}
	for _, tc := range cases {
		if got := ClassifyPath(tc.path); got != tc.want {
			t.Fatalf("path=%q got=%q want=%q", tc.path, got, tc.want)
		}
	}
}
