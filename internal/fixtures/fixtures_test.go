package fixtures

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/timetable"
)

func writeFixtures(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func sampleFiles() map[string]string {
	return map[string]string{
		DepartmentsFile:  "id,code,name\n1,CS,Computer Science\n",
		ProgramsFile:     "id,code,name,level,department_id,capacity\n1,CS-L1,Licence 1,L1,1,25\n2,CS-L2,Licence 2,L2,1,20\n",
		SubjectsFile:     "id,code,name,kind,credits,hours_per_week,semester,department_id,program_ids\n10,ALG101,Algorithmique,lecture,6,3,1,1,1;2\n",
		TeachersFile:     "id,employee_id,name,specialization,max_hours_per_week,available,subject_ids\n100,E001,Ada Martin,algorithms,20,true,10\n",
		RoomsFile:        "id,code,kind,capacity,department_id,available\n1000,A101,lecture,30,1,true\n",
		AvailabilityFile: "id,teacher_id,weekday,start,end,available\n1,100,0,08:00,12:00,true\n",
	}
}

func TestLoadReadsEveryFile(t *testing.T) {
	dir := writeFixtures(t, sampleFiles())

	data, err := Load(dir)

	require.NoError(t, err)
	require.Len(t, data.Programs, 2)
	assert.Equal(t, "L2", data.Programs[1].Level)
	require.Len(t, data.Subjects, 1)
	assert.Equal(t, pq.Int64Array{1, 2}, data.Subjects[0].ProgramIDs)
	assert.Equal(t, 3.0, data.Subjects[0].HoursPerWeek)
	require.Len(t, data.Teachers, 1)
	assert.True(t, data.Teachers[0].Available)
	assert.Equal(t, pq.Int64Array{10}, data.Teachers[0].SubjectIDs)
	require.Len(t, data.Availability, 1)
	assert.Equal(t, "08:00", data.Availability[0].StartTime)
	assert.Equal(t, []int64{1, 2}, data.ProgramIDs())
	assert.Len(t, data.Departments, 1)
}

func TestLoadDepartmentsOptional(t *testing.T) {
	files := sampleFiles()
	delete(files, DepartmentsFile)

	data, err := Load(writeFixtures(t, files))

	require.NoError(t, err)
	assert.Empty(t, data.Departments)
}

func TestLoadMissingRequiredFile(t *testing.T) {
	files := sampleFiles()
	delete(files, RoomsFile)

	_, err := Load(writeFixtures(t, files))

	assert.Error(t, err)
}

func TestLoadRejectsBadIDList(t *testing.T) {
	files := sampleFiles()
	files[SubjectsFile] = "id,code,name,kind,credits,hours_per_week,semester,department_id,program_ids\n10,ALG101,Algorithmique,lecture,6,3,1,1,one\n"

	_, err := Load(writeFixtures(t, files))

	assert.ErrorContains(t, err, SubjectsFile)
}

func TestSessionDetailsJoinsDisplayFields(t *testing.T) {
	data, err := Load(writeFixtures(t, sampleFiles()))
	require.NoError(t, err)
	monday := time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)

	details := data.SessionDetails([]timetable.Session{{
		Date: monday, Start: timetable.MustClock("08:00"), End: timetable.MustClock("09:30"),
		SubjectID: 10, TeacherID: 100, RoomID: 1000, ProgramID: 2,
	}})

	require.Len(t, details, 1)
	assert.Equal(t, "CS-L2", details[0].ProgramCode)
	assert.Equal(t, "ALG101", details[0].SubjectCode)
	assert.Equal(t, "Ada Martin", details[0].TeacherName)
	assert.Equal(t, "A101", details[0].RoomCode)
	assert.Equal(t, "08:00", details[0].StartTime)
}

func TestIDListMarshal(t *testing.T) {
	raw, err := IDList{3, 1}.MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "3;1", raw)
}
