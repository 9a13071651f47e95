package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/v0xg/bookcheck/internal/scenario"
)

// JUnit builds a JUnit XML document with one testsuite per group, in the
// order groups first appear.
func JUnit(o *scenario.Outcome) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "bookcheck")
	root.CreateAttr("tests", strconv.Itoa(len(o.Results)))
	root.CreateAttr("failures", strconv.Itoa(o.Failed()))
	root.CreateAttr("time", seconds(o.Duration))

	suites := map[string]*etree.Element{}
	counts := map[string][2]int{}
	var order []string

	for _, r := range o.Results {
		suite, ok := suites[r.Group]
		if !ok {
			suite = root.CreateElement("testsuite")
			suite.CreateAttr("name", r.Group)
			suite.CreateAttr("timestamp", o.Started.UTC().Format(time.RFC3339))
			props := suite.CreateElement("properties")
			prop := props.CreateElement("property")
			prop.CreateAttr("name", "run_id")
			prop.CreateAttr("value", o.ID)
			suites[r.Group] = suite
			order = append(order, r.Group)
		}

		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", r.Name)
		tc.CreateAttr("classname", "bookcheck."+r.Group)
		tc.CreateAttr("time", seconds(r.Duration))

		c := counts[r.Group]
		c[0]++
		if !r.Passed {
			c[1]++
			f := tc.CreateElement("failure")
			f.CreateAttr("type", r.Label)
			f.CreateAttr("message", fmt.Sprint(r.Err))
			text := fmt.Sprintf("state: %s", r.State)
			for _, a := range r.Artifacts {
				text += "\nartifact: " + a
			}
			if r.Diagnosis != nil {
				text += "\ntriage: " + r.Diagnosis.String()
			}
			f.SetText(text)
		}
		counts[r.Group] = c
	}

	for _, g := range order {
		suites[g].CreateAttr("tests", strconv.Itoa(counts[g][0]))
		suites[g].CreateAttr("failures", strconv.Itoa(counts[g][1]))
	}

	doc.Indent(2)
	return doc
}

// WriteJUnit writes the JUnit report to path.
func WriteJUnit(path string, o *scenario.Outcome) error {
	if err := JUnit(o).WriteToFile(path); err != nil {
		return fmt.Errorf("write junit report: %w", err)
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
