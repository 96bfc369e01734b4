package bulk

import (
	"strings"
	"testing"
)

func TestParseSkipsHeaderAndReadsRow(t *testing.T) {
	in := "email,first_name,last_name,role\njohn@x.com,John,Doe,clerk"
	rows, stats, err := ParseInvitations(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || stats.Rows != 1 || stats.Skipped != 0 {
		t.Fatalf("rows=%v stats=%+v", rows, stats)
	}
	want := Row{Email: "john@x.com", FirstName: "John", LastName: "Doe", Role: "clerk"}
	if rows[0] != want {
		t.Fatalf("row: %+v", rows[0])
	}
}

func TestParseUnwrapsQuotedFields(t *testing.T) {
	in := "email,first_name,last_name,role\n" +
		`jane@x.com,Jane,"Doe, Jr.",manager` + "\n"
	rows, _, err := ParseInvitations(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].LastName != "Doe, Jr." {
		t.Fatalf("rows: %+v", rows)
	}
}

func TestParseFiltersBadRowsSilently(t *testing.T) {
	in := strings.Join([]string{
		"email,first_name,last_name,role",
		"ok@x.com,Ann,Okoye,viewer",
		"not-an-email,Bob,Broken,admin", // no @
		",Carol,NoEmail,clerk",          // empty email
		"fine@x.com,Dan,Fine,clerk",
		`"unclosed quote`, // csv parse error, must stay last
	}, "\n")

	rows, stats, err := ParseInvitations(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Email != "ok@x.com" || rows[1].Email != "fine@x.com" {
		t.Fatalf("rows: %+v", rows)
	}
	if stats.Rows != 2 || stats.Skipped != 3 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestParseFileWithoutHeader(t *testing.T) {
	rows, stats, err := ParseInvitations(strings.NewReader("solo@x.com,Sol,One,admin\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || stats.Rows != 1 || rows[0].Email != "solo@x.com" {
		t.Fatalf("first data row swallowed as header: %+v", rows)
	}
}

func TestParseShortAndWideRows(t *testing.T) {
	in := "email\nshort@x.com\nwide@x.com,Wi,De,admin,ignored,columns\n"
	rows, _, err := ParseInvitations(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: %+v", rows)
	}
	if rows[0] != (Row{Email: "short@x.com"}) {
		t.Fatalf("short row: %+v", rows[0])
	}
	if rows[1].Role != "admin" {
		t.Fatalf("wide row: %+v", rows[1])
	}
}

func TestParseTrimsCellSpace(t *testing.T) {
	rows, _, err := ParseInvitations(strings.NewReader("  ann@x.com , Ann ,  Okoye , viewer\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := Row{Email: "ann@x.com", FirstName: "Ann", LastName: "Okoye", Role: "viewer"}
	if len(rows) != 1 || rows[0] != want {
		t.Fatalf("rows: %+v", rows)
	}
}

func TestParseEmptyInput(t *testing.T) {
	rows, stats, err := ParseInvitations(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 || stats.Rows != 0 || stats.Skipped != 0 {
		t.Fatalf("rows=%v stats=%+v", rows, stats)
	}
}
