package main

import "fmt"

func (cli *commandLine) encodeToken(id string) error {
	token, err := cli.codec.Encode(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) decodeToken(token string) error {
	id, err := cli.codec.Decode(token)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, id)
	return nil
}
