// Package inmemdb keeps every table in memory. It backs the test suites and local demos.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/publish"
	"github.com/trezcool/alama/core/user"
)

type (
	studentRecord struct {
		ID        int64
		UserID    string
		ClassID   int64
		FirstName string
		LastName  string
		ParentID  int64
	}

	parentRecord struct {
		ID     int64
		UserID string
	}

	tables struct {
		users        map[string]user.User
		classes      map[int64]exam.Class
		subjects     map[int64]exam.Subject
		parents      map[int64]parentRecord
		students     map[int64]studentRecord
		exams        map[int64]exam.Exam
		results      map[int64]exam.Result
		scale        grading.Scale
		notices      []notice.Notice
		publications []publish.Publication
		pk           int64
	}

	DB struct {
		txMutex sync.Mutex // one transaction at a time
		mutex   sync.RWMutex
		t       tables
	}
)

func Open() *DB {
	return &DB{t: tables{
		users:    make(map[string]user.User),
		classes:  make(map[int64]exam.Class),
		subjects: make(map[int64]exam.Subject),
		parents:  make(map[int64]parentRecord),
		students: make(map[int64]studentRecord),
		exams:    make(map[int64]exam.Exam),
		results:  make(map[int64]exam.Result),
		scale:    append(grading.Scale(nil), grading.DefaultScale...),
	}}
}

func (db *DB) nextPK() int64 {
	db.t.pk++
	return db.t.pk
}

func (db *DB) snapshot() tables {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	snap := tables{
		users:        make(map[string]user.User, len(db.t.users)),
		classes:      make(map[int64]exam.Class, len(db.t.classes)),
		subjects:     make(map[int64]exam.Subject, len(db.t.subjects)),
		parents:      make(map[int64]parentRecord, len(db.t.parents)),
		students:     make(map[int64]studentRecord, len(db.t.students)),
		exams:        make(map[int64]exam.Exam, len(db.t.exams)),
		results:      make(map[int64]exam.Result, len(db.t.results)),
		scale:        append(grading.Scale(nil), db.t.scale...),
		notices:      append([]notice.Notice(nil), db.t.notices...),
		publications: append([]publish.Publication(nil), db.t.publications...),
		pk:           db.t.pk,
	}
	for k, v := range db.t.users {
		snap.users[k] = v
	}
	for k, v := range db.t.classes {
		snap.classes[k] = v
	}
	for k, v := range db.t.subjects {
		snap.subjects[k] = v
	}
	for k, v := range db.t.parents {
		snap.parents[k] = v
	}
	for k, v := range db.t.students {
		snap.students[k] = v
	}
	for k, v := range db.t.exams {
		snap.exams[k] = v
	}
	for k, v := range db.t.results {
		snap.results[k] = v
	}
	return snap
}

func (db *DB) restore(snap tables) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.t = snap
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

// NewTransactor returns a Transactor restoring the tables when fn fails.
// fn gets a nil executor: in-memory repositories ignore it.
func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (tx *transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx.db.txMutex.Lock()
	defer tx.db.txMutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := tx.db.snapshot()
	if err := fn(nil); err != nil {
		tx.db.restore(snap)
		return err
	}
	return nil
}

// AddClass, AddSubject, AddParent and AddStudent seed the school tables.

func (db *DB) AddClass(name string) exam.Class {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c := exam.Class{ID: db.nextPK(), Name: name}
	db.t.classes[c.ID] = c
	return c
}

func (db *DB) AddSubject(classID int64, name, teacherID string) exam.Subject {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	s := exam.Subject{ID: db.nextPK(), ClassID: classID, Name: name, TeacherID: teacherID}
	db.t.subjects[s.ID] = s
	return s
}

func (db *DB) AddParent(usr user.User) exam.Parent {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	p := parentRecord{ID: db.nextPK(), UserID: usr.ID}
	db.t.parents[p.ID] = p
	return db.parent(p.ID)
}

// AddStudent enrolls usr in a class. parentID may be 0.
func (db *DB) AddStudent(usr user.User, classID int64, firstName, lastName string, parentID int64) exam.Student {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	st := studentRecord{
		ID:        db.nextPK(),
		UserID:    usr.ID,
		ClassID:   classID,
		FirstName: firstName,
		LastName:  lastName,
		ParentID:  parentID,
	}
	db.t.students[st.ID] = st
	return db.student(st)
}

func (db *DB) parent(id int64) exam.Parent {
	p := db.t.parents[id]
	usr := db.t.users[p.UserID]
	return exam.Parent{ID: p.ID, UserID: p.UserID, Name: usr.Name, Email: usr.Email}
}

func (db *DB) student(rec studentRecord) exam.Student {
	st := exam.Student{
		ID:        rec.ID,
		UserID:    rec.UserID,
		ClassID:   rec.ClassID,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     db.t.users[rec.UserID].Email,
	}
	if _, ok := db.t.parents[rec.ParentID]; ok {
		p := db.parent(rec.ParentID)
		st.Parent = &p
	}
	return st
}
