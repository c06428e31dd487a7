package postgres

// Migrations returns the embedded schema in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_students", UpSQL: migration001Students},
		{Version: 2, Name: "create_records", UpSQL: migration002Records},
		{Version: 3, Name: "create_evaluations", UpSQL: migration003Evaluations},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Students = `
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    full_name VARCHAR(200) NOT NULL,
    halaqa_id UUID NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',

    -- Snapshot of the week containing "now"
    current_week_start DATE,
    current_weekly_points INTEGER NOT NULL DEFAULT 0,
    current_weekly_rating NUMERIC(4,1) NOT NULL DEFAULT 0,
    current_stars SMALLINT NOT NULL DEFAULT 0,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('active', 'inactive', 'graduated', 'left')),
    CONSTRAINT valid_current_points CHECK (current_weekly_points >= 0),
    CONSTRAINT valid_current_rating CHECK (current_weekly_rating BETWEEN 0 AND 10),
    CONSTRAINT valid_current_stars CHECK (current_stars BETWEEN 0 AND 5)
);

CREATE INDEX IF NOT EXISTS idx_students_halaqa ON students(halaqa_id) WHERE status = 'active';
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: SOURCE RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Records = `
CREATE TABLE IF NOT EXISTS attendance_marks (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    date DATE NOT NULL,
    status VARCHAR(10) NOT NULL,
    period VARCHAR(10) NOT NULL DEFAULT 'MORNING',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_attendance_status CHECK (status IN ('PRESENT', 'ABSENT'))
);

CREATE INDEX IF NOT EXISTS idx_attendance_student_date ON attendance_marks(student_id, date);

CREATE TABLE IF NOT EXISTS presentations (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    date DATE NOT NULL,
    hizb INTEGER,
    quarter INTEGER,
    grade VARCHAR(20),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_presentations_student_date ON presentations(student_id, date);

CREATE TABLE IF NOT EXISTS deductions (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    date DATE NOT NULL,
    points INTEGER NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_deductions_student_date ON deductions(student_id, date);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: EVALUATIONS
// Rows carry no timestamps so that a recompute with unchanged inputs
// rewrites byte-identical rows.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Evaluations = `
CREATE TABLE IF NOT EXISTS weekly_evaluations (
    student_id UUID NOT NULL,
    week_start DATE NOT NULL,
    attendance_points INTEGER NOT NULL,
    presentation_points INTEGER NOT NULL,
    deduction_points INTEGER NOT NULL,
    total_points INTEGER NOT NULL,
    rating NUMERIC(4,1) NOT NULL,
    stars SMALLINT NOT NULL,

    PRIMARY KEY (student_id, week_start),
    CONSTRAINT valid_weekly_total CHECK (total_points >= 0),
    CONSTRAINT valid_weekly_rating CHECK (rating BETWEEN 0 AND 10),
    CONSTRAINT valid_weekly_stars CHECK (stars BETWEEN 1 AND 5),
    CONSTRAINT valid_week_start CHECK (EXTRACT(DOW FROM week_start) = 6)
);

CREATE TABLE IF NOT EXISTS monthly_evaluations (
    student_id UUID NOT NULL,
    year INTEGER NOT NULL,
    month SMALLINT NOT NULL,
    total_points INTEGER NOT NULL,
    rating NUMERIC(4,1) NOT NULL,
    stars SMALLINT NOT NULL,

    PRIMARY KEY (student_id, year, month),
    CONSTRAINT valid_month CHECK (month BETWEEN 1 AND 12),
    CONSTRAINT valid_monthly_rating CHECK (rating BETWEEN 0 AND 10),
    CONSTRAINT valid_monthly_stars CHECK (stars BETWEEN 0 AND 5)
);

CREATE TABLE IF NOT EXISTS yearly_evaluations (
    student_id UUID NOT NULL,
    year INTEGER NOT NULL,
    total_points INTEGER NOT NULL,
    rating NUMERIC(4,1) NOT NULL,
    stars SMALLINT NOT NULL,

    PRIMARY KEY (student_id, year),
    CONSTRAINT valid_yearly_rating CHECK (rating BETWEEN 0 AND 10),
    CONSTRAINT valid_yearly_stars CHECK (stars BETWEEN 0 AND 5)
);
`
