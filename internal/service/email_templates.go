package service

import "fmt"

func accountLockedEmailTemplate(name, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s account has been locked", appName)
	body := fmt.Sprintf(`Hi %s,

Your account was locked after 30 days without a sign-in.

Your files are untouched. Ask an administrator to unlock the account when you need access again.

Best,
The %s Team`, name, appName)

	return subject, body
}

func fileDestroyedEmailTemplate(name, fileName, filesURL, appName string) (string, string) {
	subject := fmt.Sprintf("%q reached its expiry on %s", fileName, appName)
	body := fmt.Sprintf(`Hi %s,

Your file %q reached the expiry date set at upload and has been destroyed, including all of its versions.

The storage it used has been returned to your quota. Your remaining files: %s

Best,
The %s Team`, name, fileName, filesURL, appName)

	return subject, body
}
