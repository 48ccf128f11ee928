package main

import (
	"context"
	"fmt"

	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/user"
)

// publish publishes the results of a class term on behalf of the system (no publishing user).
func (cli *commandLine) publish(classID int64, termStr string) error {
	ctx := context.Background()
	term, err := exam.ParseTerm(termStr)
	if err != nil {
		return err
	}
	if _, err = cli.examRepo.GetClass(ctx, classID); err != nil {
		return err
	}

	pub, err := cli.publishSvc.PublishTerm(ctx, exam.Scope{ClassID: classID, Term: term}, user.User{})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "published %s of class %d: %d exams, %d notices (%d students, %d parents)\n",
		pub.Term, pub.ClassID, pub.ExamsCount, pub.NoticesCount, pub.StudentNotices, pub.ParentNotices)
	return nil
}

func (cli *commandLine) gradeScale() error {
	scale, err := cli.gradingSvc.Scale(context.Background())
	if err != nil {
		return err
	}
	for _, b := range scale {
		fmt.Fprintf(cli.out, "%-3s %5.1f - %5.1f\n", b.Grade, b.MinPercent, b.MaxPercent)
	}
	for _, issue := range scale.Issues() {
		fmt.Fprintf(cli.out, "warning: %s\n", issue)
	}
	return nil
}
