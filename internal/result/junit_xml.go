// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"
)

// JUnitXMLFilename is a file name to be used with WriteJUnitXMLResults.
const JUnitXMLFilename = "results.xml"

// testSuites is the top level XML element of JUnit result.
type testSuites struct {
	XMLName   xml.Name
	TestSuite testSuite `xml:"testsuite"`
}

// testSuite is an XML element in JUnit result.
// Some fields used in JUnit XML are not generated.
// Errors: the bridge only reports success or failure. All failures are
// reported as Failures.
type testSuite struct {
	TestCase []*testCase `xml:"testcase"`

	Tests int `xml:"tests,attr"`
	// Errors and failures are not distinguished in the result model.
	// Report both as failures.
	Failures int `xml:"failures,attr"`
	Skipped  int `xml:"skipped,attr"`
}

// testCase is an element in JUnit XML test result.
type testCase struct {
	// Name of the test case, qualified by its suite path.
	Name      string `xml:"name,attr"`
	Status    string `xml:"status,attr"`         // run or notrun
	Result    string `xml:"result,attr"`         // more detailed result
	Timestamp string `xml:"timestamp,attr"`      // start time, in ISO8601
	Time      string `xml:"time,attr,omitempty"` // duration, in seconds (with a decimal point)

	Failure []*failure `xml:"failure,omitempty"`
	Skipped *skipped   `xml:"skipped,omitempty"`
}

// failure is an element in JUnit XML test result, representing a test case failure.
type failure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Details string `xml:",cdata"`
}

// skipped is an element in JUnit XML test result, representing a skipped test case.
type skipped struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
}

// WriteJUnitXMLResults saves test results to path in the JUnit XML format.
func WriteJUnitXMLResults(path string, tests []*Test) error {
	suites := testSuites{
		XMLName: xml.Name{Local: "testsuites"},
		TestSuite: testSuite{
			Tests: len(tests),
		},
	}
	suite := &suites.TestSuite
	var skips int
	var failures int
	for _, t := range tests {
		name := t.Name
		if t.SuitePath != "" {
			name = t.SuitePath + "/" + t.Name
		}
		tc := testCase{
			Name:      name,
			Timestamp: t.Start.UTC().Format(time.RFC3339),
			// Decimal point is needed for distinguishing it from nanoseconds
			// notation, e.g. "1.0" for one second.
			Time: fmt.Sprintf("%.1f", t.End.Sub(t.Start).Seconds()),
		}
		if t.Status == StatusSkip {
			tc.Status = "notrun"
			tc.Result = "skipped"
			tc.Skipped = &skipped{
				Message: t.SkipReason,
			}
			skips++
		} else if len(t.Errors) > 0 || t.Status == StatusFail {
			tc.Status = "run"
			tc.Result = "completed"
			for _, e := range t.Errors {
				tc.Failure = append(tc.Failure, &failure{
					Message: e.Reason,
					Details: fmt.Sprintf("%s:%d", e.File, e.Line),
				})
			}
			if len(t.Errors) == 0 {
				tc.Failure = append(tc.Failure, &failure{Message: "test failed"})
			}
			failures++
		} else {
			tc.Status = "run"
			tc.Result = "completed"
		}
		suite.TestCase = append(suite.TestCase, &tc)
	}
	suite.Skipped = skips
	suite.Failures = failures

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
