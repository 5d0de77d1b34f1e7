package phase

import (
	"fmt"
	"strings"
)

func specPrompt(userPrompt string) string {
	return fmt.Sprintf(`You are a data engineer. Turn the following request into an ETL specification.

Request:
%s

Respond with a single JSON object:
{
  "source_tables": ["..."],
  "target_table": "...",
  "transformations": [{"name": "...", "description": "..."}]
}`, userPrompt)
}

func codePrompt(spec *ETLSpec, guidance string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a data engineer. Write a PySpark script implementing this ETL specification.

Source tables: %s
Target table: %s
Transformations:
`, strings.Join(spec.SourceTables, ", "), spec.TargetTable)

	for _, t := range spec.Transformations {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}

	if guidance != "" {
		fmt.Fprintf(&b, "\nA previous attempt failed validation. Apply these corrections:\n%s\n", guidance)
	}

	b.WriteString("\nRespond with only the script, in a single code block.")
	return b.String()
}

func testPrompt(spec *ETLSpec, validationPhase string) string {
	return fmt.Sprintf(`You are a data quality engineer. Write validation test cases for phase %q of this ETL result.

Target table: %s
Transformations: %d

Respond with a JSON array:
[{"name": "...", "description": "...", "expected_result": "non_empty"}]

expected_result must be "non_empty", "empty", or a literal value the check query's first column must equal.`,
		validationPhase, spec.TargetTable, len(spec.Transformations))
}

func queryPrompt(spec *ETLSpec, test TestCase) string {
	return fmt.Sprintf(`Write one SQL query against table %s that checks this test case.

Test: %s
Description: %s
Expected result: %s

Respond with only the SQL, in a single code block.`,
		spec.TargetTable, test.Name, test.Description, test.ExpectedResult)
}

func remediationPrompt(spec *ETLSpec, report *PhaseReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, `An ETL job targeting table %s failed validation (%d of %d checks failed). Failing checks:
`, spec.TargetTable, report.Failed, report.Passed+report.Failed)

	for _, failure := range report.Failures {
		fmt.Fprintf(&b, "- %s (expected %s)", failure.Test.Name, failure.Test.ExpectedResult)
		if failure.Error != "" {
			fmt.Fprintf(&b, " query error: %s", failure.Error)
		}
		fmt.Fprintf(&b, "\n  SQL: %s\n", failure.SQL)
	}

	b.WriteString("\nDescribe, as a short list of concrete corrections, how the transformation script must change so these checks pass.")
	return b.String()
}
